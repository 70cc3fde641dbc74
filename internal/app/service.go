package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"sharesync/api/internal/auth"
	"sharesync/api/internal/authpw"
	"sharesync/api/internal/config"
	"sharesync/api/internal/export"
	"sharesync/api/internal/logging"
	"sharesync/api/internal/metrics"
	"sharesync/api/internal/points"
	"sharesync/api/internal/rbac"
	"sharesync/api/internal/search"
	"sharesync/api/internal/session"
	"sharesync/api/internal/store"
	"sharesync/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	authpw.UserStore
	sessionStore
	Ping(ctx context.Context) error

	GetUsersByIDs(context.Context, []string) (map[string]store.User, error)
	FindUsersByIdentifiers(context.Context, []string) ([]store.User, error)
	SearchUsers(context.Context, string, int) ([]store.User, error)
	UpdateProfile(context.Context, string, string, string) error
	UpdateAvatar(context.Context, string, string) error
	Follow(context.Context, string, string) (bool, error)
	Unfollow(context.Context, string, string) error
	IsFollowing(context.Context, string, string) (bool, error)
	FollowCounts(context.Context, string) (int, int, error)
	ListFollowers(context.Context, string) ([]store.User, error)
	ListFollowing(context.Context, string) ([]store.User, error)

	InsertProject(context.Context, store.Project) error
	GetProject(context.Context, string) (store.Project, error)
	ListProjectsForUser(context.Context, string, string, string) ([]store.ProjectMembership, error)
	ListProjectIDsForUser(context.Context, string) ([]string, error)
	UpdateProject(context.Context, store.Project) error
	TouchProject(context.Context, string) error
	DeleteProject(context.Context, string) error
	GetMemberRole(context.Context, string, string) (string, error)
	ListMembers(context.Context, string) ([]store.Member, error)
	ListMemberIDs(context.Context, string) ([]string, error)
	AddMember(context.Context, string, string, string) (bool, error)
	UpdateMemberRole(context.Context, string, string, string) error
	RemoveMember(context.Context, string, string) error
	TransferOwnership(context.Context, string, string, string) error
	ProjectCounts(context.Context, string) (store.ProjectCounts, error)

	InsertPost(context.Context, store.Post) error
	GetPost(context.Context, string, string) (store.Post, error)
	ListPosts(context.Context, string, string, string, int, int) ([]store.Post, error)
	UpdatePost(context.Context, store.Post) error
	DeletePost(context.Context, string) error
	TogglePostLike(context.Context, string, string) (store.LikeResult, error)
	InsertComment(context.Context, store.Comment) error
	GetComment(context.Context, string) (store.Comment, error)
	ListComments(context.Context, string) ([]store.Comment, error)
	DeleteComment(context.Context, string) error

	InsertTask(context.Context, store.Task) error
	GetTask(context.Context, string) (store.Task, error)
	ListTasks(context.Context, string, string, string) ([]store.Task, error)
	UpdateTask(context.Context, store.Task) error
	MarkCompletionAwarded(context.Context, string) (bool, error)
	DeleteTask(context.Context, string) error
	InsertSubtask(context.Context, store.Subtask) error
	GetSubtask(context.Context, string) (store.Subtask, error)
	ListSubtasks(context.Context, string) ([]store.Subtask, error)
	SetSubtaskDone(context.Context, string, bool) error
	DeleteSubtask(context.Context, string) error
	InsertTaskComment(context.Context, store.TaskComment) error
	ListTaskComments(context.Context, string) ([]store.TaskComment, error)

	InsertNotifications(context.Context, []store.Notification) error
	ListNotifications(context.Context, string, bool, int) ([]store.Notification, error)
	UnreadNotificationCount(context.Context, string) (int, error)
	MarkNotificationRead(context.Context, string, string) error
	MarkAllNotificationsRead(context.Context, string) (int, error)
	InsertActivity(context.Context, store.Activity) error
	ListActivity(context.Context, string, int) ([]store.Activity, error)

	AwardPoints(context.Context, store.PointEvent) (int, error)
	Leaderboard(context.Context, int) ([]store.LeaderboardEntry, error)
	ProjectLeaderboard(context.Context, string, int) ([]store.LeaderboardEntry, error)
	PointHistory(context.Context, string, int) ([]store.PointEvent, error)

	InsertFile(context.Context, store.File) error
	GetFile(context.Context, string) (store.File, error)
	ListFiles(context.Context, string) ([]store.File, error)
	DeleteFile(context.Context, string) error
}

// sessionStore is satisfied by both session.RedisStore and store.PostgresStore.
type sessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	ConsumeRefreshSession(context.Context, string) (string, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
}

type mailer interface {
	IsConfigured() bool
	SendVerificationEmail(to, userName, verificationURL string) error
	SendPasswordResetEmail(to, userName, resetURL string) error
	SendNotificationEmail(to, userName, subject, message, linkURL string) error
}

type objectStore interface {
	Configured() bool
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration, filename string) (string, error)
	Remove(ctx context.Context, key string) error
}

type publisher interface {
	Publish(ctx context.Context, room, typ string, payload any) error
}

type reporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

// Deps carries the optional backends. Nil members disable the feature they
// back; Store is required.
type Deps struct {
	Store    dataStore
	Sessions sessionStore
	Auth     *authpw.Service
	Mailer   mailer
	Files    objectStore
	Search   *search.Service
	Board    *points.Board
	Realtime publisher
	Reports  reporter
	Metrics  *metrics.Metrics
	// Checks are extra readiness probes keyed by name, e.g. "redis".
	Checks map[string]func(context.Context) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	authpw   *authpw.Service
	mailer   mailer
	files    objectStore
	search   *search.Service
	board    *points.Board
	realtime publisher
	reports  reporter
	metrics  *metrics.Metrics
	checks   map[string]func(context.Context) error
	logger   zerolog.Logger
	now      func() time.Time
	async    func(func())
}

func New(cfg config.Config, deps Deps) *Service {
	s := &Service{
		cfg:      cfg,
		store:    deps.Store,
		sessions: deps.Sessions,
		authpw:   deps.Auth,
		mailer:   deps.Mailer,
		files:    deps.Files,
		search:   deps.Search,
		board:    deps.Board,
		realtime: deps.Realtime,
		reports:  deps.Reports,
		metrics:  deps.Metrics,
		checks:   deps.Checks,
		logger:   logging.For("app"),
		now:      func() time.Time { return time.Now().UTC() },
		async:    func(fn func()) { go fn() },
	}
	if s.sessions == nil {
		s.sessions = deps.Store
	}
	if s.authpw == nil {
		s.authpw = authpw.NewService(deps.Store)
	}
	if s.reports == nil {
		s.reports = export.NewService(deps.Store)
	}
	return s
}

// Bootstrap warms the caches that mirror Postgres: the search index and the
// leaderboard sorted set.
func (s *Service) Bootstrap(ctx context.Context) error {
	s.search.ReindexAllFromPG(ctx)
	if s.board.Enabled() {
		if err := s.rebuildLeaderboard(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("leaderboard rebuild failed")
		}
	}
	return nil
}

// Ping checks the health of service dependencies (database, etc.)
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Ready runs the database check plus every extra readiness probe.
func (s *Service) Ready(ctx context.Context) map[string]error {
	results := map[string]error{"database": s.store.Ping(ctx)}
	for name, check := range s.checks {
		results[name] = check(ctx)
	}
	return results
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

func (s *Service) MaxUploadBytes() int64 {
	return s.cfg.MaxUploadBytes
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.ConsumeRefreshSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, sql.ErrNoRows) {
			return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
		}
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt); err != nil {
			s.logger.Warn().Err(err).Str(logging.USER, session.UserID).Msg("revoke access token")
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			s.logger.Warn().Err(err).Str(logging.USER, session.UserID).Msg("revoke refresh token")
		}
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// background runs fn off the request path; failures are logged only.
func (s *Service) background(what string, fn func() error) {
	s.async(func() {
		if err := fn(); err != nil {
			s.logger.Warn().Err(err).Msg(what)
		}
	})
}

func (s *Service) link(path string) string {
	return strings.TrimRight(s.cfg.PublicURL, "/") + path
}

func clampLimit(value, fallback, max int) int {
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func runeLen(value string) int {
	return len([]rune(value))
}
