package permission

import (
	"fmt"
	"strings"

	strutil "adminguard/pkg/platform/strings"
)

// Cell is the design-time status of one (role, permission) pair.
type Cell uint8

const (
	Denied Cell = iota
	Partial
	Granted
)

// defaultCells is the reference matrix. Partial cells are resolved per deployment.
var defaultCells = map[Role]map[Permission]Cell{
	RoleSuperAdmin: {
		UserManagement: Granted, ContentModeration: Granted, FinancialAccess: Granted,
		SystemConfig: Granted, AnalyticsView: Granted, AuditLogView: Granted,
	},
	RoleAdmin: {
		UserManagement: Granted, ContentModeration: Granted, FinancialAccess: Granted,
		SystemConfig: Partial, AnalyticsView: Granted, AuditLogView: Granted,
	},
	RoleModerator: {
		UserManagement: Partial, ContentModeration: Granted, FinancialAccess: Denied,
		SystemConfig: Denied, AnalyticsView: Partial, AuditLogView: Partial,
	},
	RoleSupport: {
		UserManagement: Partial, ContentModeration: Partial, FinancialAccess: Denied,
		SystemConfig: Denied, AnalyticsView: Partial, AuditLogView: Partial,
	},
}

// cellFor returns the reference cell for (role, perm). Unknown pairs are Denied.
func cellFor(role Role, perm Permission) Cell {
	return defaultCells[role][perm]
}

// Matrix is the resolved, immutable role-to-permission table for one deployment.
type Matrix struct {
	version string
	grants  map[Role]Set
}

// NewMatrix resolves the reference matrix. partialGrants entries have the form
// "role:permission" and may only name Partial cells. Grants flow upward: a permission
// held by a role is also held by every more privileged role, so resolving a lower role
// can never leave a higher one with less.
func NewMatrix(version string, partialGrants []string) (*Matrix, error) {
	grants := make(map[Role]Set, len(Roles))
	for _, role := range Roles {
		var s Set
		for _, p := range All() {
			if cellFor(role, p) == Granted {
				s = s.With(p)
			}
		}
		grants[role] = s
	}

	for _, entry := range strutil.DedupeAndTrimLower(partialGrants) {
		roleName, permName, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("partial grant %q: want role:permission", entry)
		}
		role, err := ParseRole(roleName)
		if err != nil {
			return nil, fmt.Errorf("partial grant %q: %w", entry, err)
		}
		perm, err := ParsePermission(permName)
		if err != nil {
			return nil, fmt.Errorf("partial grant %q: %w", entry, err)
		}
		if cellFor(role, perm) == Denied {
			return nil, fmt.Errorf("partial grant %q: cell is denied for %s", entry, role)
		}
		grants[role] = grants[role].With(perm)
	}

	// Roles is ordered most to least privileged; walk upward from the bottom.
	for i := len(Roles) - 1; i > 0; i-- {
		lower, higher := Roles[i], Roles[i-1]
		for _, p := range grants[lower].List() {
			if cellFor(higher, p) == Denied {
				return nil, fmt.Errorf("%s holds %s but %s is denied it", lower, p, higher)
			}
		}
		grants[higher] = grants[higher].Union(grants[lower])
	}

	return &Matrix{version: version, grants: grants}, nil
}

// MustDefault returns the matrix with no partial cells resolved.
func MustDefault() *Matrix {
	m, err := NewMatrix("default", nil)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Matrix) Version() string {
	return m.version
}

// RolePermissions returns the role-derived set. Unknown roles get nothing.
func (m *Matrix) RolePermissions(role Role) Set {
	return m.grants[role]
}

// PermissionsFor returns the role-derived set plus the identity's additive overrides.
func (m *Matrix) PermissionsFor(role Role, overrides Set) Set {
	return m.RolePermissions(role).Union(overrides)
}

// Grantee is anything that carries a role and permission overrides.
type Grantee interface {
	GrantedRole() Role
	GrantedOverrides() Set
}

// HasAll reports whether g holds every required permission. It fails closed: one missing
// permission denies the whole request.
func (m *Matrix) HasAll(g Grantee, required ...Permission) bool {
	if g == nil {
		return false
	}
	return m.PermissionsFor(g.GrantedRole(), g.GrantedOverrides()).HasAll(required...)
}
