package auth

// Permission represents a named capability.
type Permission string

// Permission constants.
const (
	PermValueWrite   Permission = "value:write"
	PermSystemReboot Permission = "system:reboot"
)

// rolePermissions maps each role to its granted permissions.
// Reads are public and need no permission.
var rolePermissions = map[Role][]Permission{
	RoleOperator: {
		PermValueWrite,
	},
	RoleAdmin: {
		PermValueWrite,
		PermSystemReboot,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
