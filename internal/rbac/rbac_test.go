package rbac

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role string
		perm string
		want bool
	}{
		{RoleAdmin, PermMoveFunds, true},
		{RoleAdmin, PermViewAudit, true},
		{RoleSupport, PermViewAllTransactions, true},
		{RoleSupport, PermMessageDispute, true},
		{RoleSupport, PermMoveFunds, false},
		{RoleSupport, PermResolveDispute, false},
		{RoleSupport, PermManagePayouts, false},
		{RoleUser, PermViewAllTransactions, false},
		{"unknown", PermViewAudit, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.perm, func(t *testing.T) {
			if got := HasPermission(tt.role, tt.perm); got != tt.want {
				t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
			}
		})
	}
}

func TestFinancialPermissionsAreAdminOnly(t *testing.T) {
	for role, perms := range RolePermissions {
		for _, p := range perms {
			if IsFinancialOperation(p) && role != RoleAdmin {
				t.Errorf("role %s holds financial permission %s", role, p)
			}
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name          string
		admin, supp   bool
		claim, expect string
	}{
		{"listed admin", true, false, "", RoleAdmin},
		{"listed admin beats claim", true, false, RoleSupport, RoleAdmin},
		{"listed support", false, true, "", RoleSupport},
		{"claim admin", false, false, RoleAdmin, RoleAdmin},
		{"claim garbage", false, false, "superuser", RoleUser},
		{"nothing", false, false, "", RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.admin, tt.supp, tt.claim); got != tt.expect {
				t.Errorf("Resolve = %s, want %s", got, tt.expect)
			}
		})
	}
}
