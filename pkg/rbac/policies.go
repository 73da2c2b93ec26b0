package rbac

import (
	"github.com/platinummonkey/verdict/pkg/auth"
)

// AdminOnly admits authenticated actors holding the admin role, and superusers
type AdminOnly struct{}

func (AdminOnly) Name() string { return "admin_only" }

func (AdminOnly) HasPermission(actor *auth.Actor, method string) Decision {
	if !actor.Authenticated() {
		return deny("authentication required")
	}
	if actor.IsAdmin() {
		return allow("admin")
	}
	return deny("admin role required")
}

func (AdminOnly) HasObjectPermission(actor *auth.Actor, method string, target Owned) Decision {
	if actor.IsAdmin() {
		return allow("admin")
	}
	return deny("admin role required")
}

// ReadOnly admits safe methods for everyone
type ReadOnly struct{}

func (ReadOnly) Name() string { return "read_only" }

func (ReadOnly) HasPermission(actor *auth.Actor, method string) Decision {
	if IsSafeMethod(method) {
		return allow("safe method")
	}
	return deny("read-only resource")
}

func (p ReadOnly) HasObjectPermission(actor *auth.Actor, method string, target Owned) Decision {
	return p.HasPermission(actor, method)
}

// AuthorModeratorAdminOrReadOnly lets anyone read, any authenticated user create, and
// only the author or a moderator or admin change an existing record
type AuthorModeratorAdminOrReadOnly struct{}

func (AuthorModeratorAdminOrReadOnly) Name() string { return "author_moderator_admin_or_read_only" }

func (AuthorModeratorAdminOrReadOnly) HasPermission(actor *auth.Actor, method string) Decision {
	if IsSafeMethod(method) {
		return allow("safe method")
	}
	if actor.Authenticated() {
		return allow("authenticated")
	}
	return deny("authentication required")
}

func (AuthorModeratorAdminOrReadOnly) HasObjectPermission(actor *auth.Actor, method string, target Owned) Decision {
	if IsSafeMethod(method) {
		return allow("safe method")
	}
	if !actor.Authenticated() {
		return deny("authentication required")
	}
	if target != nil && target.OwnerID() == actor.UserID {
		return allow("author")
	}
	switch actor.Role {
	case auth.RoleModerator, auth.RoleAdmin:
		return allow("privileged role")
	case auth.RoleUser:
		return deny("only the author, a moderator or an admin may change this")
	default:
		return deny("unknown role")
	}
}

// UserAdmin guards the per-user admin endpoints: staff, superusers and the admin role
type UserAdmin struct{}

func (UserAdmin) Name() string { return "user_admin" }

func (UserAdmin) HasPermission(actor *auth.Actor, method string) Decision {
	if !actor.Authenticated() {
		return deny("authentication required")
	}
	if actor.Elevated() || actor.Role == auth.RoleAdmin {
		return allow("user administrator")
	}
	return deny("user administration requires staff, superuser or admin role")
}

func (p UserAdmin) HasObjectPermission(actor *auth.Actor, method string, target Owned) Decision {
	return p.HasPermission(actor, method)
}

// Authenticated admits any known user
type Authenticated struct{}

func (Authenticated) Name() string { return "authenticated" }

func (Authenticated) HasPermission(actor *auth.Actor, method string) Decision {
	if actor.Authenticated() {
		return allow("authenticated")
	}
	return deny("authentication required")
}

func (p Authenticated) HasObjectPermission(actor *auth.Actor, method string, target Owned) Decision {
	return p.HasPermission(actor, method)
}

// CatalogGate picks a strategy per actor: admins and superusers get AdminOnly,
// everyone else, anonymous included, gets ReadOnly
type CatalogGate struct{}

func (CatalogGate) Name() string { return "catalog_gate" }

// Strategy returns the policy applied to actor
func (CatalogGate) Strategy(actor *auth.Actor) Policy {
	if !actor.Authenticated() {
		return ReadOnly{}
	}
	if actor.IsSuperuser {
		return AdminOnly{}
	}
	switch actor.Role {
	case auth.RoleAdmin:
		return AdminOnly{}
	case auth.RoleUser, auth.RoleModerator:
		return ReadOnly{}
	default:
		return ReadOnly{}
	}
}

func (g CatalogGate) HasPermission(actor *auth.Actor, method string) Decision {
	return g.Strategy(actor).HasPermission(actor, method)
}

func (g CatalogGate) HasObjectPermission(actor *auth.Actor, method string, target Owned) Decision {
	return g.Strategy(actor).HasObjectPermission(actor, method, target)
}
