package rbac

import (
	"net/http"

	"github.com/platinummonkey/verdict/pkg/auth"
)

// Level is the stage at which a permission is evaluated
type Level string

const (
	LevelCollection Level = "collection" // before any record is addressed
	LevelObject     Level = "object"     // against a resolved record
)

// Decision is the outcome of evaluating a policy
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }

func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Owned is a record with an author, used for object-level checks
type Owned interface {
	OwnerID() int64
}

// Policy decides whether an actor may perform a method, first on a collection and
// then on a specific record. A nil actor is anonymous. Policies are pure functions of
// their inputs and nothing is cached between requests.
type Policy interface {
	Name() string
	HasPermission(actor *auth.Actor, method string) Decision
	HasObjectPermission(actor *auth.Actor, method string, target Owned) Decision
}

// IsSafeMethod reports whether method only reads
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
