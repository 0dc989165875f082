package permission

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeGrantee struct {
	role      Role
	overrides Set
}

func (f fakeGrantee) GrantedRole() Role     { return f.role }
func (f fakeGrantee) GrantedOverrides() Set { return f.overrides }

type MatrixSuite struct {
	suite.Suite
	matrix *Matrix
}

func TestMatrixSuite(t *testing.T) {
	suite.Run(t, new(MatrixSuite))
}

func (s *MatrixSuite) SetupTest() {
	s.matrix = MustDefault()
}

func (s *MatrixSuite) TestReferenceGrants() {
	s.Run("super admin holds everything", func() {
		s.Equal(All(), s.matrix.RolePermissions(RoleSuperAdmin).List())
	})

	s.Run("admin lacks unresolved system config", func() {
		perms := s.matrix.RolePermissions(RoleAdmin)
		s.True(perms.HasAll(UserManagement, ContentModeration, FinancialAccess, AnalyticsView, AuditLogView))
		s.False(perms.Has(SystemConfig))
	})

	s.Run("moderator holds content moderation only", func() {
		s.Equal([]Permission{ContentModeration}, s.matrix.RolePermissions(RoleModerator).List())
	})

	s.Run("support holds nothing until partials resolve", func() {
		s.Empty(s.matrix.RolePermissions(RoleSupport).List())
	})

	s.Run("unknown role holds nothing", func() {
		s.Empty(s.matrix.RolePermissions(Role("root")).List())
	})
}

func (s *MatrixSuite) TestSupportWithoutOverrideCannotReachFinancial() {
	support := fakeGrantee{role: RoleSupport}
	s.False(s.matrix.HasAll(support, FinancialAccess))

	withOverride := fakeGrantee{role: RoleSupport, overrides: NewSet(FinancialAccess)}
	s.True(s.matrix.HasAll(withOverride, FinancialAccess))
}

func (s *MatrixSuite) TestHasAllFailsClosed() {
	admin := fakeGrantee{role: RoleAdmin}
	s.False(s.matrix.HasAll(admin, UserManagement, SystemConfig), "one missing permission denies all")
	s.False(s.matrix.HasAll(admin, Permission(0)), "invalid permission is never satisfied")
	s.False(s.matrix.HasAll(nil, UserManagement))
	s.True(s.matrix.HasAll(admin), "empty requirement is satisfied")
}

func (s *MatrixSuite) TestPartialResolution() {
	s.Run("resolves partial cells and flows upward", func() {
		m, err := NewMatrix("v2", []string{"support:analytics_view", "admin:system_config"})
		s.Require().NoError(err)

		s.Equal("v2", m.Version())
		s.True(m.RolePermissions(RoleSupport).Has(AnalyticsView))
		s.True(m.RolePermissions(RoleModerator).Has(AnalyticsView), "moderator must not hold less than support")
		s.True(m.RolePermissions(RoleAdmin).Has(SystemConfig))
	})

	s.Run("entries are trimmed and case folded", func() {
		m, err := NewMatrix("v2", []string{" Support:Analytics_View ", "support:analytics_view", ""})
		s.Require().NoError(err)
		s.True(m.RolePermissions(RoleSupport).Has(AnalyticsView))
	})

	s.Run("unknown pairs are denied", func() {
		s.Equal(Denied, cellFor(Role("root"), UserManagement))
		s.Equal(Partial, cellFor(RoleSupport, AnalyticsView))
	})

	s.Run("denied cells cannot be resolved", func() {
		_, err := NewMatrix("v2", []string{"support:financial_access"})
		s.Error(err)
	})

	s.Run("malformed entries are rejected", func() {
		_, err := NewMatrix("v2", []string{"support"})
		s.Error(err)
		_, err = NewMatrix("v2", []string{"intern:analytics_view"})
		s.Error(err)
		_, err = NewMatrix("v2", []string{"support:teleport"})
		s.Error(err)
	})

	s.Run("resolution never mutates another matrix", func() {
		_, err := NewMatrix("v3", []string{"moderator:user_management"})
		s.Require().NoError(err)
		s.False(s.matrix.RolePermissions(RoleModerator).Has(UserManagement))
	})
}

func (s *MatrixSuite) TestRolesAreMonotonic() {
	m, err := NewMatrix("v2", []string{"support:user_management", "support:audit_log_view"})
	s.Require().NoError(err)
	for i := len(Roles) - 1; i > 0; i-- {
		lower, higher := m.RolePermissions(Roles[i]), m.RolePermissions(Roles[i-1])
		s.True(higher.HasAll(lower.List()...), "%s must contain %s", Roles[i-1], Roles[i])
	}
}

// TestHasAllProperty checks hasAll == (required ⊆ role-derived ∪ overrides) over random inputs,
// using a map-based oracle independent of the bitset.
func TestHasAllProperty(t *testing.T) {
	m, err := NewMatrix("prop", []string{"moderator:analytics_view", "support:content_moderation"})
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(7, 11))
	all := All()

	randomSubset := func() []Permission {
		var out []Permission
		for _, p := range all {
			if rng.IntN(3) == 0 {
				out = append(out, p)
			}
		}
		return out
	}

	for i := 0; i < 2000; i++ {
		role := Roles[rng.IntN(len(Roles))]
		overrides := randomSubset()
		required := randomSubset()

		oracle := map[Permission]bool{}
		for _, p := range m.RolePermissions(role).List() {
			oracle[p] = true
		}
		for _, p := range overrides {
			oracle[p] = true
		}
		want := true
		for _, p := range required {
			if !oracle[p] {
				want = false
			}
		}

		got := m.HasAll(fakeGrantee{role: role, overrides: NewSet(overrides...)}, required...)
		if !assert.Equal(t, want, got, "role=%s overrides=%v required=%v", role, overrides, required) {
			return
		}
	}
}

func TestParsing(t *testing.T) {
	t.Run("permission names round-trip", func(t *testing.T) {
		for _, p := range All() {
			parsed, err := ParsePermission(p.String())
			require.NoError(t, err)
			assert.Equal(t, p, parsed)
		}
	})

	t.Run("set round-trips through strings", func(t *testing.T) {
		set := NewSet(AuditLogView, UserManagement)
		parsed, err := ParseSet(set.Strings())
		require.NoError(t, err)
		assert.Equal(t, set, parsed)
		assert.Equal(t, []string{"user_management", "audit_log_view"}, set.Strings())
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		_, err := ParseRole("owner")
		assert.Error(t, err)
		_, err = ParseRole("")
		assert.Error(t, err)
	})

	t.Run("missing lists absent permissions once", func(t *testing.T) {
		set := NewSet(UserManagement)
		assert.Equal(t, []Permission{FinancialAccess}, set.Missing(UserManagement, FinancialAccess, FinancialAccess))
	})
}
