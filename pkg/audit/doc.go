// Package audit records security-relevant events: signups, logins and failed logins,
// admin changes to the user directory, catalog mutations and moderator edits.
//
// Events are built with NewEvent and written through a Logger. DBLogger persists them
// to the audit_events table, LogLogger emits them on the structured log and
// MultiLogger fans out to both.
//
//	event := audit.NewEvent(ctx, actor, audit.EventTypeAdminUserDelete, audit.EventStatusSuccess).
//		On(audit.ResourceTypeUser, username)
//	_ = auditLogger.Log(ctx, event)
package audit
