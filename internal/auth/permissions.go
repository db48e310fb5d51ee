package auth

import "context"

const (
	RoleAdmin  = "payroll_admin"
	RoleViewer = "payroll_viewer"
)

const (
	PermPaycheckCompute = "payroll.compute"
	PermPaycheckPreview = "payroll.preview"
	PermPaycheckRead    = "payroll.read"
	PermPaycheckVoid    = "payroll.void"
	PermYtdRead         = "payroll.ytd.read"
	PermActivityRead    = "payroll.activity.read"
	PermMetricsRead     = "system.metrics.read"
)

var DefaultPermissions = []string{
	PermPaycheckCompute,
	PermPaycheckPreview,
	PermPaycheckRead,
	PermPaycheckVoid,
	PermYtdRead,
	PermActivityRead,
	PermMetricsRead,
}

var RolePermissions = map[string][]string{
	RoleViewer: {
		PermPaycheckPreview,
		PermPaycheckRead,
		PermYtdRead,
	},
	RoleAdmin: {
		PermPaycheckCompute,
		PermPaycheckPreview,
		PermPaycheckRead,
		PermPaycheckVoid,
		PermYtdRead,
		PermActivityRead,
		PermMetricsRead,
	},
}

// StaticPermissions answers permission checks from a fixed role table.
type StaticPermissions map[string][]string

func (s StaticPermissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	for _, p := range s[role] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}
