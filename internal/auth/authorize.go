package auth

import (
	"net/http"

	"github.com/gofrs/uuid"
)

// Rule is a capability predicate over the caller.
type Rule func(Identity) bool

func Authenticated() Rule {
	return func(Identity) bool { return true }
}

func AnyRole(roles ...Role) Rule {
	return func(id Identity) bool {
		for _, r := range roles {
			if id.Role == r {
				return true
			}
		}
		return false
	}
}

func Owner(userID uuid.UUID) Rule {
	return func(id Identity) bool { return id.UserID == userID }
}

func Either(rules ...Rule) Rule {
	return func(id Identity) bool {
		for _, rule := range rules {
			if rule(id) {
				return true
			}
		}
		return false
	}
}

// Authorize is the single capability check used by the middleware and by the
// ledger's ownership checks.
func Authorize(id Identity, rule Rule) error {
	if !id.Authenticated() {
		return ErrUnauthorized
	}
	if !rule(id) {
		return ErrForbidden
	}
	return nil
}

// Require rejects requests whose identity does not satisfy rule. It expects
// Authenticator to have run first.
func Require(rule Rule, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := FromContext(r.Context())
			if err := Authorize(id, rule); err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
