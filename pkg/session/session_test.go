package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Satisfies(t *testing.T) {
	tests := []struct {
		have     Role
		required Role
		want     bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleManager, true},
		{RoleAdmin, RoleViewer, true},
		{RoleManager, RoleAdmin, false},
		{RoleManager, RoleManager, true},
		{RoleManager, RoleViewer, true},
		{RoleViewer, RoleManager, false},
		{Role("intern"), RoleViewer, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.have.Satisfies(tt.required),
			"%s satisfies %s", tt.have, tt.required)
	}
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleManager.Valid())
	assert.True(t, RoleViewer.Valid())
	assert.False(t, Role("root").Valid())
	assert.False(t, Role("").Valid())
}

func TestTokenResolver(t *testing.T) {
	tr := NewTokenResolver()
	sess := &Session{ID: "s1", UserID: "u1", Username: "ops", Role: RoleManager}
	tr.Register("secret-token", sess)

	t.Run("valid token resolves", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer secret-token")
		got, err := tr.Resolve(req)
		require.NoError(t, err)
		assert.Equal(t, sess, got)
	})

	t.Run("missing header is anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		got, err := tr.Resolve(req)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("malformed header is anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		got, err := tr.Resolve(req)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("revoked token no longer resolves", func(t *testing.T) {
		tr.Revoke("secret-token")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer secret-token")
		got, err := tr.Resolve(req)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestStatic(t *testing.T) {
	sess := &Session{UserID: "u1", Role: RoleAdmin}
	r := Static(sess)

	got, err := r.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	// Static(nil) models an always-anonymous backend
	got, err = Static(nil).Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionContext(t *testing.T) {
	sess := &Session{UserID: "u1", Role: RoleAdmin}
	ctx := WithSession(context.Background(), sess)
	assert.Equal(t, sess, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
