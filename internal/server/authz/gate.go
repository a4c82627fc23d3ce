package authz

// Allowed decides whether role may perform action on module.
//
// The decision table:
//
//	superadmin  read+write everywhere
//	admin       read everywhere, write everywhere except users
//	staff       read everywhere, no writes
//	user        no elevated access (self-service reads are routed
//	            outside this gate)
//
// Unknown roles are denied everything.
func Allowed(role Role, module Module, action Action) bool {
	switch role {
	case RoleSuperadmin:
		return true
	case RoleAdmin:
		if action == ActionRead {
			return true
		}
		return module != ModuleUsers
	case RoleStaff:
		return action == ActionRead
	case RoleUser:
		return false
	}
	return false
}

// CanRead reports whether role may read module records.
func CanRead(role Role, module Module) bool {
	return Allowed(role, module, ActionRead)
}

// CanWrite reports whether role may create or modify module records.
func CanWrite(role Role, module Module) bool {
	return Allowed(role, module, ActionWrite)
}
