// Package resolver turns a signed-in principal into a role-bearing Session.
// It keeps a per-uid role cache that auth-state events invalidate, so role
// changes and sign-outs anywhere take effect on the next request.
package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/system/authstate"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"go.uber.org/zap"
)

// Session is the derived, never-persisted view of who is signed in.
// Role is "guest" when User is nil. Revoked marks a principal whose account
// no longer exists; callers should drop whatever credential carried it.
type Session struct {
	User    *identity.Principal
	Role    string
	Loading bool
	Revoked bool
}

// ProfileGetter is the part of identity.Profiles the resolver reads.
type ProfileGetter interface {
	Get(ctx context.Context, uid string) (models.UserProfile, error)
}

// AccountGetter is the part of identity.Accounts the resolver reads to
// confirm an account still exists.
type AccountGetter interface {
	Get(ctx context.Context, uid string) (identity.Principal, error)
}

type Options struct {
	// Wait bounds how long State blocks on an in-flight fetch before it
	// reports Loading.
	Wait time.Duration
	// FetchTimeout bounds a single profile read.
	FetchTimeout time.Duration
	// TTL is how long a resolved role is served before it is fetched again.
	// Events normally invalidate sooner; TTL bounds staleness when one is
	// dropped.
	TTL time.Duration
	// Accounts, when set, is checked on every fetch. A missing account
	// revokes the uid.
	Accounts AccountGetter
}

type entry struct {
	role     string
	revoked  bool
	resolved bool
	at       time.Time
	done     chan struct{}
}

type Resolver struct {
	profiles ProfileGetter
	accounts AccountGetter
	log      *zap.Logger
	wait     time.Duration
	timeout  time.Duration
	ttl      time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	revoked map[string]struct{}
	mounted bool

	unsub    func()
	loopDone chan struct{}
	fetches  sync.WaitGroup
}

// New starts a resolver subscribed to hub. Call Close to release it.
func New(profiles ProfileGetter, hub *authstate.Hub, logger *zap.Logger, opts Options) *Resolver {
	if opts.Wait <= 0 {
		opts.Wait = 1500 * time.Millisecond
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	r := &Resolver{
		profiles: profiles,
		accounts: opts.Accounts,
		log:      logger.Named("resolver"),
		wait:     opts.Wait,
		timeout:  opts.FetchTimeout,
		ttl:      opts.TTL,
		entries:  make(map[string]*entry),
		revoked:  make(map[string]struct{}),
		mounted:  true,
		loopDone: make(chan struct{}),
	}

	events, unsub := hub.Subscribe(64)
	r.unsub = unsub
	go r.listen(events)
	return r
}

// State resolves p's role. A nil principal is a guest, and so is one whose
// account has been deleted.
func (r *Resolver) State(ctx context.Context, p *identity.Principal) Session {
	if p == nil || p.UID == "" {
		return Session{Role: models.RoleGuest}
	}

	r.mu.Lock()
	if !r.mounted {
		r.mu.Unlock()
		fctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		role, revoked := r.fetchRole(fctx, p.UID)
		return sessionFor(p, role, revoked)
	}
	if _, gone := r.revoked[p.UID]; gone {
		r.mu.Unlock()
		return sessionFor(p, "", true)
	}
	e, ok := r.entries[p.UID]
	if !ok || (e.resolved && time.Since(e.at) > r.ttl) {
		e = r.startFetchLocked(p.UID)
	}
	if e.resolved {
		role, revoked := e.role, e.revoked
		r.mu.Unlock()
		return sessionFor(p, role, revoked)
	}
	done := e.done
	r.mu.Unlock()

	timer := time.NewTimer(r.wait)
	defer timer.Stop()
	select {
	case <-done:
		r.mu.Lock()
		role, revoked := e.role, e.revoked
		r.mu.Unlock()
		return sessionFor(p, role, revoked)
	case <-timer.C:
	case <-ctx.Done():
	}
	return Session{User: p, Loading: true}
}

func sessionFor(p *identity.Principal, role string, revoked bool) Session {
	if revoked {
		return Session{Role: models.RoleGuest, Revoked: true}
	}
	return Session{User: p, Role: role}
}

// startFetchLocked registers a pending entry for uid and fetches its role in
// the background. r.mu must be held.
func (r *Resolver) startFetchLocked(uid string) *entry {
	e := &entry{done: make(chan struct{})}
	r.entries[uid] = e
	r.fetches.Add(1)
	go r.fetch(uid, e)
	return e
}

func (r *Resolver) fetch(uid string, e *entry) {
	defer r.fetches.Done()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	role, revoked := r.fetchRole(ctx, uid)

	r.mu.Lock()
	defer r.mu.Unlock()
	e.role, e.revoked = role, revoked
	// Only a current entry of a mounted resolver becomes cached state.
	if r.mounted && r.entries[uid] == e {
		e.resolved = true
		e.at = time.Now()
		if revoked {
			r.revoked[uid] = struct{}{}
			delete(r.entries, uid)
		}
	}
	close(e.done)
}

// fetchRole reads uid's role. revoked is true only when the account store
// positively reports the account gone; any other failure falls back to
// RoleUser.
func (r *Resolver) fetchRole(ctx context.Context, uid string) (role string, revoked bool) {
	if r.accounts != nil {
		if _, err := r.accounts.Get(ctx, uid); err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				r.log.Info("account no longer exists; revoking", zap.String("uid", uid))
				return models.RoleGuest, true
			}
			r.log.Warn("account check failed", zap.Error(err), zap.String("uid", uid))
		}
	}
	prof, err := r.profiles.Get(ctx, uid)
	if err != nil {
		if !errors.Is(err, identity.ErrProfileNotFound) {
			r.log.Warn("role fetch failed; defaulting to user", zap.Error(err), zap.String("uid", uid))
		}
		return models.RoleUser, false
	}
	return prof.EffectiveRole(), false
}

func (r *Resolver) listen(events <-chan authstate.Event) {
	defer close(r.loopDone)
	for ev := range events {
		r.apply(ev)
	}
}

func (r *Resolver) apply(ev authstate.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mounted || ev.UID == "" {
		return
	}
	switch ev.Kind {
	case authstate.SignedOut:
		delete(r.entries, ev.UID)
	case authstate.Deleted:
		delete(r.entries, ev.UID)
		r.revoked[ev.UID] = struct{}{}
	case authstate.SignedIn:
		delete(r.revoked, ev.UID)
		r.startFetchLocked(ev.UID)
	case authstate.ProfileChanged:
		if _, active := r.entries[ev.UID]; active {
			r.startFetchLocked(ev.UID)
		}
	}
}

// Revoked reports whether uid has been deleted while this resolver was mounted.
func (r *Resolver) Revoked(uid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, gone := r.revoked[uid]
	return gone
}

// Cached reports the resolved role for uid, if any.
func (r *Resolver) Cached(uid string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uid]
	if !ok || !e.resolved {
		return "", false
	}
	return e.role, true
}

// Close unmounts the resolver: the subscription is released, the cache is
// dropped, and fetches still in flight no longer write state.
func (r *Resolver) Close() {
	r.mu.Lock()
	if !r.mounted {
		r.mu.Unlock()
		return
	}
	r.mounted = false
	r.entries = make(map[string]*entry)
	r.revoked = make(map[string]struct{})
	r.mu.Unlock()

	r.unsub()
	<-r.loopDone
	r.fetches.Wait()
}
