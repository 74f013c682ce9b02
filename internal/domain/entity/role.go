package entity

// Role names carried in the access token
const (
	RoleAdmin    = "admin"
	RoleProvider = "provider"
	RolePatient  = "patient"
)

// IsValidRole checks a role claim against the known roles
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleProvider, RolePatient:
		return true
	}
	return false
}
