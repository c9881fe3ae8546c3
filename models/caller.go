package models

import "slices"

// CallerIdentity is the authenticated principal on whose behalf an operation runs
type CallerIdentity struct {
	AccountID string
	Roles     []Role
}

// IsAuthenticated checks if the identity refers to an account
func (c CallerIdentity) IsAuthenticated() bool {
	return c.AccountID != ""
}

// HasRole checks if the caller holds the role
func (c CallerIdentity) HasRole(role Role) bool {
	return slices.Contains(c.Roles, role)
}

// IsAdmin reports admin authority; super_admin implies admin
func (c CallerIdentity) IsAdmin() bool {
	return c.HasRole(RoleAdmin) || c.HasRole(RoleSuperAdmin)
}

// IsSuperAdmin checks for the super_admin role
func (c CallerIdentity) IsSuperAdmin() bool {
	return c.HasRole(RoleSuperAdmin)
}

// CanAccess checks if the caller may read data owned by accountID
func (c CallerIdentity) CanAccess(accountID string) bool {
	return c.AccountID == accountID || c.IsAdmin()
}

// CallerFromAccount builds the identity of an account
func CallerFromAccount(account *Account) CallerIdentity {
	return CallerIdentity{
		AccountID: account.ID,
		Roles:     slices.Clone(account.Roles),
	}
}
