package auth

import "kpitracker/internal/domain/settings"

const RoleAdmin = "admin"

const (
	PermEntriesEdit    = "entries.edit"
	PermEntriesDelete  = "entries.delete"
	PermEntriesImport  = "entries.import"
	PermEmployeesWrite = "employees.write"
	PermSettingsWrite  = settings.PermWrite
)

// featureEnabled reports whether the permission flags in effect allow perm.
// Permissions without a feature flag only need an admin session.
func featureEnabled(perm string, p settings.Permissions) bool {
	switch perm {
	case PermEntriesEdit, PermEntriesDelete:
		return p.AllowEditDelete
	case PermEntriesImport:
		return p.AllowBulkImport
	default:
		return true
	}
}
