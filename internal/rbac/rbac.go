package rbac

// Role constants
const (
	RoleUser    = "user"
	RoleSupport = "support"
	RoleAdmin   = "admin"
)

// Permission constants
const (
	PermViewAllTransactions = "view_all_transactions"
	PermMoveFunds           = "move_funds"
	PermResolveDispute      = "resolve_dispute"
	PermMessageDispute      = "message_dispute"
	PermManagePayouts       = "manage_payouts"
	PermViewAudit           = "view_audit"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleAdmin: {
		PermViewAllTransactions, PermMoveFunds, PermResolveDispute,
		PermMessageDispute, PermManagePayouts, PermViewAudit,
	},
	RoleSupport: {
		PermViewAllTransactions, PermMessageDispute, PermViewAudit,
		// Support CANNOT: PermMoveFunds, PermResolveDispute, PermManagePayouts
	},
	RoleUser: {},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsFinancialOperation checks if permission moves money (admin-only).
func IsFinancialOperation(permission string) bool {
	return permission == PermMoveFunds || permission == PermResolveDispute || permission == PermManagePayouts
}

// IsStaff reports whether role may use the admin API at all.
func IsStaff(role string) bool {
	return role == RoleAdmin || role == RoleSupport
}

// Resolve picks the effective role: the configured allow-lists win, then the
// app_metadata role from the token, then plain user.
func Resolve(listedAdmin, listedSupport bool, claimRole string) string {
	switch {
	case listedAdmin:
		return RoleAdmin
	case listedSupport:
		return RoleSupport
	case claimRole == RoleAdmin || claimRole == RoleSupport:
		return claimRole
	}
	return RoleUser
}
