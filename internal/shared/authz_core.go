package shared

// Wildcard grants every permission. It is carried by the superuser role and
// implied for users flagged as admin.
const Wildcard = "*"

// Role management permissions.
const (
	PermRoleRead   = "read role"
	PermRoleCreate = "create role"
	PermRoleUpdate = "update role"
	PermRoleDelete = "delete role"
)

// Permission catalog permissions.
const (
	PermPermissionRead   = "read permission"
	PermPermissionCreate = "create permission"
	PermPermissionUpdate = "update permission"
	PermPermissionDelete = "delete permission"
)

// User management permissions.
const (
	PermUserRead   = "read user"
	PermUserCreate = "create user"
	PermUserUpdate = "update user"
	PermUserDelete = "delete user"
	PermRoleAssign = "assign role"
)

// Menu management permissions.
const (
	PermMenuRead   = "read menu"
	PermMenuCreate = "create menu"
	PermMenuUpdate = "update menu"
	PermMenuDelete = "delete menu"
)

// CoreScopes lists every permission known to the application, wildcard included.
func CoreScopes() []string {
	return []string{
		Wildcard,
		PermRoleRead,
		PermRoleCreate,
		PermRoleUpdate,
		PermRoleDelete,
		PermPermissionRead,
		PermPermissionCreate,
		PermPermissionUpdate,
		PermPermissionDelete,
		PermUserRead,
		PermUserCreate,
		PermUserUpdate,
		PermUserDelete,
		PermRoleAssign,
		PermMenuRead,
		PermMenuCreate,
		PermMenuUpdate,
		PermMenuDelete,
	}
}

// ScopeTitles holds the human-readable title seeded for each permission.
var ScopeTitles = map[string]string{
	Wildcard:             "All permissions",
	PermRoleRead:         "View roles",
	PermRoleCreate:       "Create roles",
	PermRoleUpdate:       "Edit roles",
	PermRoleDelete:       "Delete roles",
	PermPermissionRead:   "View permissions",
	PermPermissionCreate: "Create permissions",
	PermPermissionUpdate: "Edit permissions",
	PermPermissionDelete: "Delete permissions",
	PermUserRead:         "View users",
	PermUserCreate:       "Create users",
	PermUserUpdate:       "Edit users",
	PermUserDelete:       "Delete users",
	PermRoleAssign:       "Assign roles to users",
	PermMenuRead:         "View menus",
	PermMenuCreate:       "Create menus",
	PermMenuUpdate:       "Edit menus",
	PermMenuDelete:       "Delete menus",
}
