package rbac

type Role string
type Action string

const (
	RoleOwner     Role = "OWNER"
	RoleManager   Role = "MANAGER"
	RoleDeveloper Role = "DEVELOPER"
)

const (
	ActionRead      Action = "read"
	ActionTranslate Action = "translate"
	ActionEvaluate  Action = "evaluate"
	ActionMerge     Action = "merge"
	ActionManage    Action = "manage"
	ActionAdmin     Action = "admin"
)

// Can reports whether a project role is allowed to perform an action.
// Non-members carry the empty role and are allowed nothing.
func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleManager:
		return action != ActionAdmin
	case RoleDeveloper:
		return action == ActionRead || action == ActionTranslate || action == ActionEvaluate
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleOwner, RoleManager, RoleDeveloper:
		return Role(role)
	default:
		return ""
	}
}
