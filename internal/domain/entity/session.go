package entity

import "time"

// Role distinguishes the employee filing terminal from the admin console
type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// IsValid returns true for employee and admin
func (r Role) IsValid() bool {
	return r == RoleEmployee || r == RoleAdmin
}

// Session is a display/routing tag, not a credential
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsAdmin reports whether the session belongs to the admin role
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

// Theme is the stored presentation preference
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// IsValid returns true for light and dark
func (t Theme) IsValid() bool {
	return t == ThemeLight || t == ThemeDark
}
