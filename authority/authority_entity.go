package authority

import (
	"strings"
)

// SystemAdminRole grants every operation, including administrative
// endpoints like index rebuilds.
const SystemAdminRole = "system:admin"

// Permissions is the flat role list carried by a session. Workflow
// roles are scoped by definition name: "Approver_Expense" grants the
// Approver role on the Expense workflow.
type Permissions []string

func (c Permissions) HasRole(role string) bool {
	for _, v := range c {
		if strings.EqualFold(v, role) {
			return true
		}
	}
	return false
}

func (c Permissions) HasGlobalAdminRole() bool {
	for _, v := range c {
		if strings.HasPrefix(strings.ToLower(v), "system:") {
			return true
		}
	}
	return false
}

func (c Permissions) HasRolePrefix(prefix string) bool {
	for _, v := range c {
		if strings.HasPrefix(strings.ToLower(v), strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func (c Permissions) HasRoleSuffix(suffix string) bool {
	for _, v := range c {
		if strings.HasSuffix(strings.ToLower(v), strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

// HasDefinitionViewPerm reports whether the session may read instances
// of the named definition: any role scoped to it, or a system role.
func (c Permissions) HasDefinitionViewPerm(definitionName string) bool {
	return c.HasGlobalAdminRole() || c.HasRoleSuffix("_"+definitionName)
}
