package domain

import (
	"fmt"
	"strings"
)

// Role is an access-control role defined by the market contract.
type Role string

const (
	RoleCreator  Role = "creator"
	RoleResolver Role = "resolver"
	RoleAdmin    Role = "admin"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleAdmin, RoleCreator, RoleResolver}

// ParseRole accepts a role tag in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleCreator, RoleResolver, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Getter returns the contract view function that yields the role hash.
func (r Role) Getter() string {
	switch r {
	case RoleCreator:
		return "CREATOR_ROLE"
	case RoleResolver:
		return "RESOLVER_ROLE"
	default:
		return "DEFAULT_ADMIN_ROLE"
	}
}

// Decision is the tri-state result of a role check.
type Decision int

const (
	Denied Decision = iota
	Authorized
	Unavailable
)

func (d Decision) String() string {
	switch d {
	case Authorized:
		return "authorized"
	case Unavailable:
		return "unavailable"
	default:
		return "denied"
	}
}
