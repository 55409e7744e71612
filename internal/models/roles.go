package models

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRole reports whether role is one the platform knows about.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleUser:
		return true
	}
	return false
}
