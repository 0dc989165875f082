package login_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminguard/internal/auth/login"
	sessionservice "adminguard/internal/auth/service"
	sessionstore "adminguard/internal/auth/store/session"
	"adminguard/internal/auth/token"
	"adminguard/internal/identity/credentials"
	identity "adminguard/internal/identity/models"
	identitystore "adminguard/internal/identity/store"
	attempts "adminguard/internal/loginattempt/models"
	attemptservice "adminguard/internal/loginattempt/service"
	attemptstore "adminguard/internal/loginattempt/store"
	"adminguard/internal/permission"
	id "adminguard/pkg/domain"
	"adminguard/pkg/requestcontext"
)

// tally counts store round trips by method.
type tally struct {
	mu    sync.Mutex
	calls map[string]int
}

func (t *tally) hit(method string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[method]++
}

func (t *tally) reset() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.calls
	t.calls = map[string]int{}
	return out
}

type countedIdentities struct {
	*identitystore.InMemoryStore
	tally *tally
}

func (c countedIdentities) GetIdentityByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	c.tally.hit("GetIdentityByEmail")
	return c.InMemoryStore.GetIdentityByEmail(ctx, email)
}

func (c countedIdentities) UpdateIdentity(ctx context.Context, userID id.UserID, patch identity.Patch) (*identity.Identity, error) {
	c.tally.hit("UpdateIdentity")
	return c.InMemoryStore.UpdateIdentity(ctx, userID, patch)
}

type countedAttempts struct {
	*attemptstore.InMemoryStore
	tally *tally
}

func (c countedAttempts) Append(ctx context.Context, attempt *attempts.LoginAttempt) error {
	c.tally.hit("Append")
	return c.InMemoryStore.Append(ctx, attempt)
}

func (c countedAttempts) ListByEmailSince(ctx context.Context, email string, since time.Time) ([]attempts.LoginAttempt, error) {
	c.tally.hit("ListByEmailSince")
	return c.InMemoryStore.ListByEmailSince(ctx, email, since)
}

func (c countedAttempts) ListFailuresBySourceSince(ctx context.Context, source string, since time.Time) ([]attempts.LoginAttempt, error) {
	c.tally.hit("ListFailuresBySourceSince")
	return c.InMemoryStore.ListFailuresBySourceSince(ctx, source, since)
}

type storeWorkFixture struct {
	service    *login.Service
	identities *identitystore.InMemoryStore
	tally      *tally
	hash       string
	now        time.Time
}

func newStoreWorkFixture(t *testing.T, hash string) *storeWorkFixture {
	t.Helper()
	f := &storeWorkFixture{
		identities: identitystore.NewInMemoryStore(),
		tally:      &tally{calls: map[string]int{}},
		hash:       hash,
		now:        time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC),
	}
	tracker, err := attemptservice.New(countedAttempts{InMemoryStore: attemptstore.NewInMemoryStore(), tally: f.tally})
	require.NoError(t, err)
	sessions, err := sessionservice.New(sessionstore.New())
	require.NoError(t, err)
	tokens, err := token.New("store-work-signing-key", "adminguard", permission.MustDefault(), sessions)
	require.NoError(t, err)
	f.service, err = login.New(countedIdentities{InMemoryStore: f.identities, tally: f.tally}, tracker, sessions, tokens)
	require.NoError(t, err)
	return f
}

func (f *storeWorkFixture) add(t *testing.T, email string, status identity.Status) {
	t.Helper()
	ident, err := identity.NewIdentity(email, "", permission.RoleAdmin, f.hash, f.now)
	require.NoError(t, err)
	ident.Status = status
	require.NoError(t, f.identities.Create(context.Background(), ident))
}

func (f *storeWorkFixture) login(email, pw string, requireMFA bool) error {
	ctx := requestcontext.WithTime(context.Background(), f.now)
	_, err := f.service.Login(ctx, login.Request{
		Email: email, Password: pw, SourceAddress: "192.0.2.10", RequireMFA: requireMFA,
	})
	return err
}

func TestEveryRejectionDoesTheSameStoreWork(t *testing.T) {
	hash, err := credentials.HashPassword(password)
	require.NoError(t, err)

	paths := []struct {
		name  string
		setup func(t *testing.T, f *storeWorkFixture)
		email string
		pw    string
		mfa   bool
	}{
		{name: "unknown email", email: "ghost@example.com", pw: password},
		{
			name:  "wrong password",
			setup: func(t *testing.T, f *storeWorkFixture) { f.add(t, "ops@example.com", identity.StatusActive) },
			email: "ops@example.com", pw: "nope",
		},
		{
			name: "locked account with right password",
			setup: func(t *testing.T, f *storeWorkFixture) {
				f.add(t, "ops@example.com", identity.StatusActive)
				for range 5 {
					require.Error(t, f.login("ops@example.com", "nope", false))
				}
			},
			email: "ops@example.com", pw: password,
		},
		{
			name: "locked unknown email",
			setup: func(t *testing.T, f *storeWorkFixture) {
				for range 5 {
					require.Error(t, f.login("ghost@example.com", "nope", false))
				}
			},
			email: "ghost@example.com", pw: password,
		},
		{
			name:  "inactive account with right password",
			setup: func(t *testing.T, f *storeWorkFixture) { f.add(t, "ops@example.com", identity.StatusSuspended) },
			email: "ops@example.com", pw: password,
		},
		{
			name:  "missing second factor",
			setup: func(t *testing.T, f *storeWorkFixture) { f.add(t, "ops@example.com", identity.StatusActive) },
			email: "ops@example.com", pw: password, mfa: true,
		},
	}

	want := map[string]int{
		"ListByEmailSince":          2,
		"GetIdentityByEmail":        1,
		"Append":                    1,
		"ListFailuresBySourceSince": 1,
		"UpdateIdentity":            1,
	}
	var first error
	for _, p := range paths {
		t.Run(p.name, func(t *testing.T) {
			f := newStoreWorkFixture(t, hash)
			if p.setup != nil {
				p.setup(t, f)
			}
			f.tally.reset()

			err := f.login(p.email, p.pw, p.mfa)
			require.Error(t, err)
			assert.Equal(t, want, f.tally.reset())

			if first == nil {
				first = err
			}
			assert.Equal(t, first.Error(), err.Error())
		})
	}
}
