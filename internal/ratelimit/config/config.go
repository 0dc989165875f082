// Package config resolves rate-limit ceilings by role tier and class.
package config

import (
	"errors"
	"time"

	"adminguard/internal/permission"
	"adminguard/internal/ratelimit/models"
)

// Limits holds the per-window ceilings.
type Limits struct {
	Window     time.Duration
	ByRole     map[permission.Role]int
	Anonymous  int
	BulkExport int
}

// Default returns the stock ceilings per minute.
func Default() Limits {
	return Limits{
		Window: time.Minute,
		ByRole: map[permission.Role]int{
			permission.RoleSuperAdmin: 200,
			permission.RoleAdmin:      150,
			permission.RoleModerator:  100,
			permission.RoleSupport:    80,
		},
		Anonymous:  60,
		BulkExport: 5,
	}
}

// Validate requires a positive window and ceilings that never shrink with privilege.
func (l Limits) Validate() error {
	if l.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if l.Anonymous <= 0 || l.BulkExport <= 0 {
		return errors.New("rate limit ceilings must be positive")
	}
	prev := 0
	for i := len(permission.Roles) - 1; i >= 0; i-- {
		limit, ok := l.ByRole[permission.Roles[i]]
		if !ok || limit <= 0 {
			return errors.New("every role needs a positive rate limit")
		}
		if limit < prev {
			return errors.New("rate limits must not decrease with role privilege")
		}
		prev = limit
	}
	return nil
}

// Ceiling picks the limit for a subject. Bulk export ignores the role; an empty or
// unknown role gets the anonymous ceiling.
func (l Limits) Ceiling(role permission.Role, class models.Class) (int, models.Tier) {
	if class == models.ClassBulkExport {
		return l.BulkExport, models.TierBulkExport
	}
	if limit, ok := l.ByRole[role]; ok && role.IsValid() {
		return limit, models.Tier(role)
	}
	return l.Anonymous, models.TierAnonymous
}
