package auth

// Role names, lowest privilege first.
const (
	RoleSubscriber  = "subscriber"
	RoleContributor = "contributor"
	RoleAuthor      = "author"
	RoleEditor      = "editor"
	RoleAdmin       = "admin"
	RoleSuperAdmin  = "super_admin"
)

// DefaultRole is assigned to self-registered users.
const DefaultRole = RoleSubscriber

var roleLevels = map[string]int{
	RoleSubscriber:  1,
	RoleContributor: 2,
	RoleAuthor:      3,
	RoleEditor:      4,
	RoleAdmin:       5,
	RoleSuperAdmin:  6,
}

// unknownRequiredLevel makes an unrecognised required role unreachable.
const unknownRequiredLevel = 999

// RoleLevel maps a subject's role to its hierarchy level. Unknown roles get
// level 0 and so never satisfy any requirement.
func RoleLevel(role string) int {
	return roleLevels[role]
}

// HasRole reports whether userRole meets or exceeds requiredRole in the
// hierarchy.
func HasRole(userRole, requiredRole string) bool {
	required, ok := roleLevels[requiredRole]
	if !ok {
		required = unknownRequiredLevel
	}
	return RoleLevel(userRole) >= required
}

// ValidRole reports whether role is a recognised role name.
func ValidRole(role string) bool {
	_, ok := roleLevels[role]
	return ok
}
