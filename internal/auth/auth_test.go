package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/auth"
)

func TestTokenManager_SignParse(t *testing.T) {
	tm := auth.NewTokenManager("secret", "marketplace", time.Hour)
	id := auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleSeller}

	token, err := tm.Sign(id)
	require.NoError(t, err)

	parsed, err := tm.Parse(token)
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestTokenManager_Parse_Rejects(t *testing.T) {
	tm := auth.NewTokenManager("secret", "marketplace", time.Hour)
	id := auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleUser}

	otherSecret, err := auth.NewTokenManager("other", "marketplace", time.Hour).Sign(id)
	require.NoError(t, err)
	otherIssuer, err := auth.NewTokenManager("secret", "someone-else", time.Hour).Sign(id)
	require.NoError(t, err)
	expired, err := auth.NewTokenManager("secret", "marketplace", -time.Minute).Sign(id)
	require.NoError(t, err)
	badRole, err := tm.Sign(auth.Identity{UserID: id.UserID, Role: "root"})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong_secret": otherSecret,
		"wrong_issuer": otherIssuer,
		"expired":      expired,
		"bad_role":     badRole,
		"garbage":      "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tm.Parse(token)
			require.ErrorIs(t, err, auth.ErrUnauthorized)
		})
	}
}

func TestAuthorize(t *testing.T) {
	owner := uuid.Must(uuid.NewV4())
	user := auth.Identity{UserID: owner, Role: auth.RoleUser}
	stranger := auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleUser}
	admin := auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleAdmin}

	ownerOrAdmin := auth.Either(auth.Owner(owner), auth.AnyRole(auth.RoleAdmin))

	assert.NoError(t, auth.Authorize(user, ownerOrAdmin))
	assert.NoError(t, auth.Authorize(admin, ownerOrAdmin))
	assert.ErrorIs(t, auth.Authorize(stranger, ownerOrAdmin), auth.ErrForbidden)
	assert.ErrorIs(t, auth.Authorize(auth.Identity{}, auth.Authenticated()), auth.ErrUnauthorized)
	assert.ErrorIs(t, auth.Authorize(user, auth.AnyRole(auth.RoleSeller, auth.RoleAdmin)), auth.ErrForbidden)
}

func TestMiddleware(t *testing.T) {
	tm := auth.NewTokenManager("secret", "marketplace", time.Hour)
	seller := auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleSeller}
	buyer := auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleUser}

	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		switch err {
		case auth.ErrForbidden:
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}

	var seen auth.Identity
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := tm.Authenticator(onError)(auth.Require(auth.AnyRole(auth.RoleSeller), onError)(final))

	sign := func(id auth.Identity) string {
		token, err := tm.Sign(id)
		require.NoError(t, err)
		return "Bearer " + token
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no_header", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"wrong_role", sign(buyer), http.StatusForbidden},
		{"ok", sign(seller), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/sales", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			require.Equal(t, tt.want, rr.Code)
		})
	}
	require.Equal(t, seller, seen)
}

func TestFromContext(t *testing.T) {
	_, ok := auth.FromContext(context.Background())
	require.False(t, ok)

	id := auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleAdmin}
	got, ok := auth.FromContext(auth.WithIdentity(context.Background(), id))
	require.True(t, ok)
	require.Equal(t, id, got)
}
