package entities

import "time"

// The directory manages a fixed pair of roles; ad-hoc role creation is not
// supported.
const (
	RoleAdmin       = "admin"
	RoleChairperson = "chairperson"
)

// AdminOf returns the role whose members may grant and revoke the given
// role. Both roles are administered by admin, including admin itself.
func AdminOf(role string) (string, bool) {
	switch role {
	case RoleAdmin, RoleChairperson:
		return RoleAdmin, true
	default:
		return "", false
	}
}

func KnownRole(role string) bool {
	_, ok := AdminOf(role)
	return ok
}

// Membership is one principal's active membership in a role.
type Membership struct {
	Role      string    `json:"role"`
	Principal string    `json:"principal"`
	GrantedBy string    `json:"granted_by"`
	GrantedAt time.Time `json:"granted_at"`
}
