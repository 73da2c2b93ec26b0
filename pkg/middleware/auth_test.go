package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/verdict/pkg/apperrors"
	"github.com/platinummonkey/verdict/pkg/auth"
	"github.com/platinummonkey/verdict/pkg/contextkeys"
)

type stubActors map[int64]*auth.Actor

func (s stubActors) LoadActor(ctx context.Context, userID int64) (*auth.Actor, error) {
	if a, ok := s[userID]; ok {
		return a, nil
	}
	return nil, apperrors.NotFound(errors.New("user not found"))
}

func newTestAuth(t *testing.T) (*AuthMiddleware, *auth.TokenIssuer) {
	t.Helper()
	issuer := auth.NewTokenIssuer("secret", time.Hour, "verdict")
	actors := stubActors{
		1: {UserID: 1, Username: "alice", Role: auth.RoleModerator},
	}
	return NewAuthMiddleware(issuer, actors), issuer
}

func TestAuthMiddleware(t *testing.T) {
	m, issuer := newTestAuth(t)

	var seen *auth.Actor
	var seenUserID string
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ActorFromRequest(r)
		seenUserID = contextkeys.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	valid, err := issuer.Issue(&auth.Actor{UserID: 1, Username: "alice", Role: auth.RoleUser})
	require.NoError(t, err)
	deleted, err := issuer.Issue(&auth.Actor{UserID: 99, Username: "gone"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantActor  bool
	}{
		{name: "anonymous", header: "", wantStatus: http.StatusOK},
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK, wantActor: true},
		{name: "wrong scheme", header: "Token " + valid, wantStatus: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized},
		{name: "deleted user", header: "Bearer " + deleted, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, seenUserID = nil, ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/titles", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantActor {
				require.NotNil(t, seen)
				// role comes from the loader, not the token
				assert.Equal(t, auth.RoleModerator, seen.Role)
				assert.Equal(t, "1", seenUserID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestActorFromContext_Empty(t *testing.T) {
	assert.Nil(t, ActorFromContext(context.Background()))
}
