package service

import "github.com/sukuu-hq/sukuu/platform/tenant"

// Role is the computed role variant of a user within its partition. It is
// never stored; it is derived from the validated flags each time.
type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RoleSchoolAdmin   Role = "school_admin"
	RoleTeacher       Role = "teacher"
	RoleStudent       Role = "student"
	RoleParent        Role = "parent"
	// RoleMember is a partition user with no specific role flag set.
	RoleMember Role = "member"
)

// RoleOf computes the display role for a user in the given partition.
// Multiple flags may be true at once (a school admin who also teaches);
// precedence decides display only, not authorization.
func RoleOf(u User, space tenant.Space) Role {
	if space.Public {
		if u.IsSuperuser {
			return RolePlatformAdmin
		}
		return RoleMember
	}

	switch {
	case u.IsSchoolAdmin:
		return RoleSchoolAdmin
	case u.IsTeacher:
		return RoleTeacher
	case u.IsStudent:
		return RoleStudent
	case u.IsParent:
		return RoleParent
	default:
		return RoleMember
	}
}

// Label returns the human-readable role name.
func (r Role) Label() string {
	switch r {
	case RolePlatformAdmin:
		return "Super Admin"
	case RoleSchoolAdmin:
		return "School Admin"
	case RoleTeacher:
		return "Teacher"
	case RoleStudent:
		return "Student"
	case RoleParent:
		return "Parent"
	case RoleMember:
		return "User"
	default:
		return "User"
	}
}
