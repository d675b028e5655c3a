package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned when parsing an unrecognised role name
var ErrUnknownRole = errors.New("unknown role")

// Role is a privilege level. Levels are ordered, higher values include the
// privileges of lower ones. Roles are stored but not enforced.
type Role int

const (
	RoleUser    Role = iota + 1 // signed up
	RoleTrusted                 // lighter limits, more services
	RoleMod                     // can moderate content and untrust users
	RoleAdmin                   // can delete users
	RoleOwner                   // anything
)

var roleNames = map[Role]string{
	RoleUser:    "user",
	RoleTrusted: "trusted",
	RoleMod:     "mod",
	RoleAdmin:   "admin",
	RoleOwner:   "owner",
}

// Roles returns all roles in ascending privilege order
func Roles() []Role {
	return []Role{RoleUser, RoleTrusted, RoleMod, RoleAdmin, RoleOwner}
}

// String returns the role name
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// MarshalText encodes the role by name, so stored records survive
// renumbering. Unknown roles are refused.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// ParseRole parses a role name (case-insensitive)
func ParseRole(name string) (Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for role, n := range roleNames {
		if n == name {
			return role, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// RoleLevels returns a name -> level mapping of all roles
func RoleLevels() map[string]int {
	roles := Roles()
	levels := make(map[string]int, len(roles))
	for _, role := range roles {
		levels[role.String()] = int(role)
	}
	return levels
}
