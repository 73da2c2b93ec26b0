// Package rbac is the access control engine.
//
// A Policy is a pure function of (actor, method, target) evaluated twice per request:
// HasPermission before any record is addressed and HasObjectPermission once the record
// has been resolved. A nil actor is anonymous.
//
// Policies:
//
//   - AdminOnly: admin role or superuser
//   - ReadOnly: GET, HEAD and OPTIONS only
//   - AuthorModeratorAdminOrReadOnly: anyone reads, authenticated users create, the author or a moderator or admin changes
//   - UserAdmin: staff, superuser or admin role
//   - Authenticated: any known user
//   - CatalogGate: AdminOnly for admins and superusers, ReadOnly for everyone else
//
// Checker turns denials into apperrors: Unauthorized for anonymous actors, Forbidden otherwise.
//
//	if err := checker.CheckCollection(ctx, rbac.CatalogGate{}, actor, r.Method); err != nil {
//		return err
//	}
package rbac
