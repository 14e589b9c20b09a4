package domain

// UserRole is carried in the access token; the identity service upstream owns
// the user records themselves.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleAgent UserRole = "agent"
)
