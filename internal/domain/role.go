package domain

import "fmt"

// Role is the account role chosen at registration.
type Role string

const (
	RoleUser       Role = "user"
	RoleExpert     Role = "expert"
	RoleArtist     Role = "artist"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
	RoleEmployee   Role = "employee"
)

// ParseRole maps a role tag onto the closed set of roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleExpert, RoleArtist, RoleAdmin, RoleSuperAdmin, RoleEmployee:
		return r, nil
	}
	return "", fmt.Errorf("unrecognized role %q: %w", s, ErrValidation)
}

// IsAdmin reports whether the role belongs to the administrative family.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin || r == RoleEmployee
}

func (r Role) String() string { return string(r) }
