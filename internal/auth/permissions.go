package auth

// Coarse permission names granted via role assignment. Matching is
// case-sensitive.
const (
	PermUserRead     = "user_read"
	PermUserCreate   = "user_create"
	PermUserUpdate   = "user_update"
	PermUserDelete   = "user_delete"
	PermRoleRead     = "role_read"
	PermRoleCreate   = "role_create"
	PermRoleUpdate   = "role_update"
	PermRoleDelete   = "role_delete"
	PermAccessRead   = "access_read"
	PermAccessCreate = "access_create"
	PermAccessUpdate = "access_update"
	PermAccessDelete = "access_delete"
	PermRoleAccess   = "role_access_update"
)

// BuiltinPermissions is ensured at startup so role grants always have a
// catalog to draw from.
var BuiltinPermissions = []Permission{
	{Name: PermUserRead, Description: "List and view users"},
	{Name: PermUserCreate, Description: "Create users and approve registrations"},
	{Name: PermUserUpdate, Description: "Update user profiles and statuses"},
	{Name: PermUserDelete, Description: "Soft-delete users"},
	{Name: PermRoleRead, Description: "List and view roles"},
	{Name: PermRoleCreate, Description: "Create roles"},
	{Name: PermRoleUpdate, Description: "Rename roles"},
	{Name: PermRoleDelete, Description: "Soft-delete roles"},
	{Name: PermAccessRead, Description: "List and view permissions"},
	{Name: PermAccessCreate, Description: "Create permissions"},
	{Name: PermAccessUpdate, Description: "Update permissions"},
	{Name: PermAccessDelete, Description: "Soft-delete permissions"},
	{Name: PermRoleAccess, Description: "Grant and revoke role permissions"},
}
