package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer contribute", role: RoleViewer, action: ActionContribute, allow: false},
		{name: "member contribute", role: RoleMember, action: ActionContribute, allow: true},
		{name: "member moderate", role: RoleMember, action: ActionModerate, allow: false},
		{name: "admin manage", role: RoleAdmin, action: ActionManage, allow: true},
		{name: "admin own", role: RoleAdmin, action: ActionOwn, allow: false},
		{name: "owner own", role: RoleOwner, action: ActionOwn, allow: true},
		{name: "outsider read", role: RoleNone, action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("admin") != RoleAdmin {
		t.Fatal("expected admin to normalize to RoleAdmin")
	}
	if Normalize("superuser") != RoleNone {
		t.Fatal("expected unknown role to normalize to RoleNone")
	}
}

func TestAssignableExcludesOwner(t *testing.T) {
	if Assignable(RoleOwner) {
		t.Fatal("owner must not be assignable")
	}
	if !Assignable(RoleViewer) || !Assignable(RoleMember) || !Assignable(RoleAdmin) {
		t.Fatal("expected viewer, member and admin to be assignable")
	}
}

func TestRankOrdering(t *testing.T) {
	if !(Rank(RoleOwner) > Rank(RoleAdmin) && Rank(RoleAdmin) > Rank(RoleMember) && Rank(RoleMember) > Rank(RoleViewer) && Rank(RoleViewer) > Rank(RoleNone)) {
		t.Fatal("unexpected role ordering")
	}
}
