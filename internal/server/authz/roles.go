// Package authz implements the authorization gate: a pure decision over
// (session role, requested action) evaluated before any storage I/O runs.
// Roles and resource modules are closed enumerations so that adding one
// forces every call site through the compiler instead of silently
// defaulting to allowed or forbidden.
package authz

// Role is the closed set of account roles.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleStaff      Role = "staff"
	RoleUser       Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperadmin, RoleAdmin, RoleStaff, RoleUser:
		return true
	}
	return false
}

// Module is the closed set of resource modules guarded by the gate.
type Module string

const (
	ModuleUsers     Module = "users"
	ModuleRooms     Module = "rooms"
	ModuleResidents Module = "residents"
	ModuleVisitors  Module = "visitors"
	ModuleBillings  Module = "billings"
)

// Action distinguishes reads from writes within a module.
type Action int

const (
	ActionRead Action = iota
	ActionWrite
)

// Modules lists every guarded module; used by tests to verify the
// decision table exhaustively.
func Modules() []Module {
	return []Module{ModuleUsers, ModuleRooms, ModuleResidents, ModuleVisitors, ModuleBillings}
}

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleSuperadmin, RoleAdmin, RoleStaff, RoleUser}
}
