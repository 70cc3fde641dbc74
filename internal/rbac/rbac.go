package rbac

type Role string
type Action string

const (
	RoleNone   Role = ""
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

const (
	ActionRead       Action = "read"
	ActionContribute Action = "contribute"
	ActionModerate   Action = "moderate"
	ActionManage     Action = "manage"
	ActionOwn        Action = "own"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleAdmin:
		return action != ActionOwn
	case RoleMember:
		return action == ActionRead || action == ActionContribute
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// Normalize maps unknown input to RoleNone so it grants nothing.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleMember, RoleAdmin, RoleOwner:
		return Role(role)
	default:
		return RoleNone
	}
}

// Assignable reports whether role may be granted through sharing or a role
// change. Ownership only moves through a transfer.
func Assignable(role Role) bool {
	return role == RoleViewer || role == RoleMember || role == RoleAdmin
}

// Rank orders roles for comparisons such as "admins cannot remove admins".
func Rank(role Role) int {
	switch role {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}
