package auth

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"
)

var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("not allowed")
)

type Role string

const (
	RoleUser   Role = "user"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// Identity is the authenticated caller. Downstream code trusts it as-is.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

func (i Identity) Authenticated() bool {
	return i.UserID != uuid.Nil && i.Role.Valid()
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.Authenticated()
}
