package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"travelhub/api/internal/identity"
	"travelhub/api/internal/security"
)

// DefaultRecheckInterval bounds how long a cached store trusts its state
// without asking the provider again.
const DefaultRecheckInterval = 30 * time.Second

// Registry maps access tokens to live stores for the HTTP layer. Tokens are
// indexed by digest.
type Registry struct {
	auth     identity.Provider
	profiles ProfileFinder
	log      zerolog.Logger
	recheck  time.Duration

	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry(auth identity.Provider, profiles ProfileFinder, log zerolog.Logger) *Registry {
	return &Registry{
		auth:     auth,
		profiles: profiles,
		log:      log,
		recheck:  DefaultRecheckInterval,
		stores:   make(map[string]*Store),
	}
}

// SetRecheckInterval changes how often Resolve revalidates a cached store.
// Call before serving requests.
func (r *Registry) SetRecheckInterval(every time.Duration) {
	r.recheck = every
}

// NewStore builds an unregistered store, used for a login attempt.
func (r *Registry) NewStore() *Store {
	return New(r.auth, r.profiles, r.log)
}

// Adopt registers a store that completed Login. Stores without a session are
// closed instead.
func (r *Registry) Adopt(store *Store) bool {
	sess, ok := store.Session()
	if !ok {
		store.Close()
		return false
	}

	key := security.HashToken(sess.AccessToken)
	r.mu.Lock()
	previous := r.stores[key]
	r.stores[key] = store
	r.mu.Unlock()

	if previous != nil && previous != store {
		previous.Close()
	}
	return true
}

// Resolve returns the store for accessToken. The first caller for an unknown
// token bootstraps the store with Init; concurrent callers get the same store
// and observe it as loading until Init completes. A cached store is
// revalidated once its last check is older than the recheck interval.
func (r *Registry) Resolve(ctx context.Context, accessToken string) *Store {
	key := security.HashToken(accessToken)

	r.mu.Lock()
	if store, ok := r.stores[key]; ok {
		r.mu.Unlock()
		if store.dueForCheck(time.Now(), r.recheck) {
			store.Revalidate(ctx)
			if !store.IsAuthenticated() {
				r.drop(key, store)
			}
		}
		return store
	}
	store := New(r.auth, r.profiles, r.log)
	store.mu.Lock()
	store.loading = true
	store.mu.Unlock()
	r.stores[key] = store
	r.mu.Unlock()

	store.Init(ctx, accessToken)

	if !store.IsAuthenticated() {
		r.drop(key, store)
	}
	return store
}

func (r *Registry) drop(key string, store *Store) {
	r.mu.Lock()
	if r.stores[key] == store {
		delete(r.stores, key)
	}
	r.mu.Unlock()
	store.Close()
}

// Peek returns the registered store for accessToken without bootstrapping.
func (r *Registry) Peek(accessToken string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[security.HashToken(accessToken)]
	return store, ok
}

// Release logs the store out, closes it and forgets the token.
func (r *Registry) Release(ctx context.Context, accessToken string) {
	key := security.HashToken(accessToken)

	r.mu.Lock()
	store, ok := r.stores[key]
	delete(r.stores, key)
	r.mu.Unlock()

	if !ok {
		if err := r.auth.SignOut(ctx, accessToken); err != nil {
			r.log.Debug().Err(err).Msg("sign out of unregistered token")
		}
		return
	}

	store.Logout(ctx)
	store.Close()
}

// Sweep closes stores that are signed out, expired or idle since before
// idleBefore. It returns the number of stores removed.
func (r *Registry) Sweep(now time.Time, idleBefore time.Time) int {
	var victims []*Store

	r.mu.Lock()
	for key, store := range r.stores {
		if store.Loading() {
			continue
		}
		if !store.IsAuthenticated() || store.expired(now) || store.idleSince().Before(idleBefore) {
			victims = append(victims, store)
			delete(r.stores, key)
		}
	}
	r.mu.Unlock()

	for _, store := range victims {
		store.Close()
	}
	return len(victims)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Close closes every store. Used on shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]*Store)
	r.mu.Unlock()

	for _, store := range stores {
		store.Close()
	}
}
