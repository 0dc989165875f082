// Package permission holds the closed role and permission enumerations and the immutable
// role-to-permission matrix.
package permission

import (
	"slices"

	dErrors "adminguard/pkg/domain-errors"
)

// Role is one of the fixed administrative roles.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleModerator  Role = "moderator"
	RoleSupport    Role = "support"
)

// Roles lists every role from most to least privileged.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleModerator, RoleSupport}

// ParseRole constructs a Role from external input.
// Errors: CodeInvalidInput for empty or unknown roles.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

func (r Role) IsValid() bool {
	return r.Rank() > 0
}

// Rank orders roles by privilege; 0 means unknown.
func (r Role) Rank() int {
	switch r {
	case RoleSuperAdmin:
		return 4
	case RoleAdmin:
		return 3
	case RoleModerator:
		return 2
	case RoleSupport:
		return 1
	}
	return 0
}

func (r Role) String() string {
	return string(r)
}

// Permission is an atomic capability. The zero value is not a permission.
type Permission uint8

const (
	UserManagement Permission = iota + 1
	ContentModeration
	FinancialAccess
	SystemConfig
	AnalyticsView
	AuditLogView
)

var permissionNames = [...]string{
	UserManagement:    "user_management",
	ContentModeration: "content_moderation",
	FinancialAccess:   "financial_access",
	SystemConfig:      "system_config",
	AnalyticsView:     "analytics_view",
	AuditLogView:      "audit_log_view",
}

// All lists every permission in declaration order.
func All() []Permission {
	return []Permission{UserManagement, ContentModeration, FinancialAccess, SystemConfig, AnalyticsView, AuditLogView}
}

func (p Permission) IsValid() bool {
	return p >= UserManagement && p <= AuditLogView
}

func (p Permission) String() string {
	if !p.IsValid() {
		return "unknown"
	}
	return permissionNames[p]
}

// ParsePermission constructs a Permission from its wire name.
// Errors: CodeInvalidInput for unknown names.
func ParsePermission(s string) (Permission, error) {
	for _, p := range All() {
		if permissionNames[p] == s {
			return p, nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid permission: "+s)
}

func (p Permission) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid permission")
	}
	return []byte(p.String()), nil
}

func (p *Permission) UnmarshalText(b []byte) error {
	parsed, err := ParsePermission(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Set is a bitset of permissions.
type Set uint16

func NewSet(perms ...Permission) Set {
	var s Set
	for _, p := range perms {
		s = s.With(p)
	}
	return s
}

// With returns s plus p. Invalid permissions are ignored.
func (s Set) With(p Permission) Set {
	if !p.IsValid() {
		return s
	}
	return s | 1<<p
}

func (s Set) Has(p Permission) bool {
	return p.IsValid() && s&(1<<p) != 0
}

// HasAll reports whether every required permission is in s. An invalid permission in
// required is never satisfied.
func (s Set) HasAll(required ...Permission) bool {
	for _, p := range required {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

func (s Set) Union(o Set) Set {
	return s | o
}

func (s Set) List() []Permission {
	var out []Permission
	for _, p := range All() {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s Set) Strings() []string {
	perms := s.List()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = p.String()
	}
	return out
}

// ParseSet builds a Set from wire names.
func ParseSet(names []string) (Set, error) {
	var s Set
	for _, n := range names {
		p, err := ParsePermission(n)
		if err != nil {
			return 0, err
		}
		s = s.With(p)
	}
	return s, nil
}

// Missing returns the required permissions absent from s, for diagnostics.
func (s Set) Missing(required ...Permission) []Permission {
	var out []Permission
	for _, p := range required {
		if !s.Has(p) && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
