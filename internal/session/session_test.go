package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careergate/pkg/kvstore"
)

func TestValid(t *testing.T) {
	assert.True(t, Valid("session_1700000000000_ab12cd34ef56"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("session__abc"))
	assert.False(t, Valid("session_123_"))
	assert.False(t, Valid("bogus_123_abc"))
	assert.False(t, Valid("session_123_ABC"), "random part is lowercase")
}

func TestEnsureKeepsValidID(t *testing.T) {
	m := NewManager(kvstore.NewMemory(), time.Hour)

	id, err := m.Ensure(context.Background(), "session_1700000000000_abc123")
	require.NoError(t, err)
	assert.Equal(t, "session_1700000000000_abc123", id)
}

func TestEnsureMintsWhenMissingOrInvalid(t *testing.T) {
	m := NewManager(kvstore.NewMemory(), time.Hour)

	minted, err := m.Ensure(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, Valid(minted), "minted id %q should be valid", minted)

	replaced, err := m.Ensure(context.Background(), "garbage")
	require.NoError(t, err)
	assert.True(t, Valid(replaced))
	assert.NotEqual(t, minted, replaced)
}

func TestMiddlewareEchoesAndInjects(t *testing.T) {
	m := NewManager(kvstore.NewMemory(), time.Hour)

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	t.Run("existing id is preserved", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(Header, "session_1700000000000_abc123")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "session_1700000000000_abc123", seen)
		assert.Equal(t, "session_1700000000000_abc123", w.Header().Get(Header))
	})

	t.Run("missing id is minted", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.True(t, Valid(seen))
		assert.Equal(t, seen, w.Header().Get(Header))
	})
}
