package core

import "fmt"

// Role is the portal a user belongs to.
type Role string

const (
	RoleStudent     Role = "STUDENT"
	RoleAssociation Role = "ASSOCIATION"
	RoleSchool      Role = "SCHOOL"
)

var Roles = []Role{RoleStudent, RoleAssociation, RoleSchool}

func ParseRole(s string) (Role, error) {
	switch r := Role(CleanString(s)); r {
	case RoleStudent, RoleAssociation, RoleSchool:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Name returns the human readable name of the role.
func (r Role) Name() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleAssociation:
		return "Association"
	case RoleSchool:
		return "School"
	default:
		return ""
	}
}
