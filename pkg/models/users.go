package models

// Role decides what a user may do with the approval workflow
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// ValidRole reports whether r is a known role
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Actor identifies who is performing an operation. Credential management
// lives outside this service; the JWT middleware materializes one of these
// per request from the token claims.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

// IsAdmin reports whether the actor may operate the approval gate
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
