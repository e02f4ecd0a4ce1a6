package entity

const (
	RoleAdmin        = "admin"
	RoleSuperAdmin   = "superadmin"
	RoleCustomer     = "customer"
	RoleDriver       = "driver"
	RoleVendor       = "vendor"
	RoleFleetManager = "fleet_manager"
)

// Identity is an authenticated connection principal.
type Identity struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// IsAdmin reports whether the identity belongs to the shared admin pool.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin || i.Role == RoleSuperAdmin
}

// CanOverride reports whether the identity may close conversations it does
// not currently handle.
func (i Identity) CanOverride() bool {
	return i.Role == RoleSuperAdmin
}
