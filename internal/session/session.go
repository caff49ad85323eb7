// Package session manages the anonymous client identity the funnel and rate
// limiter key on. There are no accounts: a client is identified by an opaque
// id of the form session_<unixms>_<random>, minted on first contact and
// echoed back so the browser can cache it.
package session

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"careergate/pkg/kvstore"
)

// Header carries the anonymous session id on every funnel request.
const Header = "X-Session-Id"

var idPattern = regexp.MustCompile(`^session_\d+_[a-z0-9]+$`)

type contextKeySessionID struct{}

// ContextKeySessionID is exported for tests that need context.WithValue.
var ContextKeySessionID = contextKeySessionID{}

// FromContext retrieves the session id from the context, or "".
func FromContext(ctx context.Context) string {
	id, ok := ctx.Value(ContextKeySessionID).(string)
	if !ok {
		return ""
	}
	return id
}

// Valid reports whether id has the expected anonymous-session format.
func Valid(id string) bool {
	return idPattern.MatchString(id)
}

// Manager mints session ids and records first-seen markers in the kv store
// so the admin surface can distinguish live sessions from typos.
type Manager struct {
	store kvstore.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store kvstore.Store, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Ensure returns provided when it is a valid session id, otherwise mints a
// fresh one. Either way the id's first-seen marker is refreshed.
func (m *Manager) Ensure(ctx context.Context, provided string) (string, error) {
	id := provided
	if !Valid(id) {
		id = m.mint()
	}

	key := "session:seen:" + id
	if _, ok, err := m.store.Get(ctx, key); err != nil {
		return "", err
	} else if !ok {
		stamp := []byte(m.now().UTC().Format(time.RFC3339))
		if err := m.store.Set(ctx, key, stamp, m.ttl); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (m *Manager) mint() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("session_%d_%s", m.now().UnixMilli(), random)
}

// Middleware resolves the session id for each request, stores it in the
// request context, and echoes it on the response so the client can cache it.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Ensure(r.Context(), r.Header.Get(Header))
		if err != nil {
			// Session tracking must never block the funnel; fall back to a
			// non-persisted id.
			id = m.mint()
		}

		w.Header().Set(Header, id)
		ctx := context.WithValue(r.Context(), ContextKeySessionID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
