package rbac

import (
	"context"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/auth"
	"github.com/platinummonkey/verdict/pkg/observability"
)

// Checker evaluates policies and converts denials into domain errors
type Checker struct {
	metrics *observability.Metrics
}

// NewChecker creates a permission checker. metrics may be nil.
func NewChecker(metrics *observability.Metrics) *Checker {
	return &Checker{metrics: metrics}
}

// CheckCollection evaluates the collection-level permission
func (c *Checker) CheckCollection(ctx context.Context, policy Policy, actor *auth.Actor, method string) error {
	return c.enforce(ctx, policy, LevelCollection, actor, method, policy.HasPermission(actor, method))
}

// CheckObject evaluates the object-level permission against target
func (c *Checker) CheckObject(ctx context.Context, policy Policy, actor *auth.Actor, method string, target Owned) error {
	return c.enforce(ctx, policy, LevelObject, actor, method, policy.HasObjectPermission(actor, method, target))
}

func (c *Checker) enforce(ctx context.Context, policy Policy, level Level, actor *auth.Actor, method string, decision Decision) error {
	if decision.Allowed {
		return nil
	}

	if c != nil && c.metrics != nil {
		c.metrics.PermissionDenials.WithLabelValues(policy.Name(), string(level)).Inc()
	}
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"policy": policy.Name(),
		"level":  string(level),
		"method": method,
		"reason": decision.Reason,
	}).Debug("permission denied")

	return DenialError(actor)
}

// DenialError returns the error for a denied actor: 401 when anonymous, 403 otherwise
func DenialError(actor *auth.Actor) error {
	if !actor.Authenticated() {
		return apperrors.Unauthorized("")
	}
	return apperrors.Forbidden("")
}
