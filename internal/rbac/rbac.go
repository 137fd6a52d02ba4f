package rbac

type Role string
type Action string

const (
	RoleWriter Role = "writer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

const (
	// ActionRead covers listing and viewing chapters, files and the schedule.
	ActionRead Action = "read"
	// ActionWrite covers writer-side content changes (drafts, submission).
	ActionWrite Action = "write"
	// ActionEdit covers editor-side content changes and chapter metadata.
	ActionEdit Action = "edit"
	// ActionAdmin covers chapter creation, confirmation, schedule and users.
	ActionAdmin Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionEdit
	case RoleWriter:
		return action == ActionRead || action == ActionWrite
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleWriter, RoleEditor, RoleAdmin:
		return Role(role)
	default:
		return RoleWriter
	}
}
