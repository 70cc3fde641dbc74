package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRouteLabel(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{path: "/", want: "/"},
		{path: "/api/projects", want: "/api/projects"},
		{path: "/api/projects/prj_0123456789abcdef0123456789abcdef/posts", want: "/api/projects/:id/posts"},
		{path: "/api/users/me", want: "/api/users/me"},
		{path: "/api/tasks/tsk_1/comments", want: "/api/tasks/:id/comments"},
		{path: "/api/comments/tcm_1", want: "/api/comments/:id"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			if got := RouteLabel(tc.path); got != tc.want {
				t.Fatalf("RouteLabel(%q) = %q, want %q", tc.path, got, tc.want)
			}
		})
	}
}

func TestObserveRequestCountsByRoute(t *testing.T) {
	m := New(zerolog.Nop())
	m.ObserveRequest(http.MethodGet, "/api/projects/prj_a", 200, 5*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/projects/prj_b", 200, 5*time.Millisecond)

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/projects/:id", "200"))
	if got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(zerolog.Nop())
	m.NotificationCreated("task.assigned", 3)
	m.ConnectionOpened()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rr.Body)
	for _, want := range []string{
		`sharesync_notifications_total{type="task.assigned"} 3`,
		"sharesync_realtime_connections 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest(http.MethodGet, "/", 200, time.Millisecond)
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.NotificationCreated("x", 1)
	m.FrameDropped()
}
