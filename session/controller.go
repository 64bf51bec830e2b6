package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"corkboard/auth"
	"corkboard/notify"
	"corkboard/schemas"
)

type State int

const (
	StateUninitialized State = iota
	StateAuthenticating
	StateAuthenticated
	StateUnauthenticated
)

// IdentityFunc receives the session identity, or nil once bootstrap has
// terminally failed.
type IdentityFunc func(identity *schemas.Identity)

// Controller obtains exactly one identity per process lifetime and publishes
// its transitions. Unauthenticated is terminal: a failed bootstrap is never
// retried automatically.
type Controller struct {
	provider auth.Provider
	notifier notify.Sink
	logger   *zap.Logger
	token    string

	mu          sync.Mutex
	state       State
	identity    *schemas.Identity
	watchers    map[int]IdentityFunc
	nextWatchId int
	unsubscribe auth.UnsubscribeFunc
}

// NewController wires the identity collaborator. token is the pre-provisioned
// credential; empty means anonymous sign-in.
func NewController(provider auth.Provider, notifier notify.Sink, logger *zap.Logger, token string) *Controller {
	return &Controller{
		provider: provider,
		notifier: notifier,
		logger:   logger,
		token:    token,
		watchers: map[int]IdentityFunc{},
	}
}

// Bootstrap resolves the session identity once: the token path when a
// credential is configured, the anonymous path otherwise. Provider errors
// surface as one generic notification and leave the session unauthenticated.
func (c *Controller) Bootstrap(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return
	}
	c.state = StateAuthenticating
	c.mu.Unlock()

	c.unsubscribe = c.provider.OnAuthStateChanged(func(identity *schemas.Identity) {
		if identity != nil {
			c.apply(identity)
		}
	})

	var identity *schemas.Identity
	var err error
	if c.token != "" {
		identity, err = c.provider.SignInWithToken(ctx, c.token)
	} else {
		identity, err = c.provider.SignInAnonymously(ctx)
	}
	if err != nil {
		c.logger.Error("identity bootstrap failed", zap.Error(err))
		c.notifier.Notify("authentication failed", schemas.SeverityError)
		c.fail()
		return
	}
	// the auth-state watcher usually lands first; applying here as well makes
	// the transition independent of provider callback ordering
	c.apply(identity)
}

// OnIdentityChange registers a watcher. If bootstrap already resolved, the
// watcher gets the outcome immediately.
func (c *Controller) OnIdentityChange(cb IdentityFunc) func() {
	c.mu.Lock()
	id := c.nextWatchId
	c.nextWatchId++
	c.watchers[id] = cb
	resolved := c.state == StateAuthenticated || c.state == StateUnauthenticated
	identity := c.identity
	c.mu.Unlock()

	if resolved {
		cb(identity)
	}

	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Identity() *schemas.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Close releases the auth-state watcher.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

func (c *Controller) apply(identity *schemas.Identity) {
	c.mu.Lock()
	if c.state == StateAuthenticated && c.identity != nil && c.identity.UID == identity.UID {
		c.mu.Unlock()
		return
	}
	if c.state == StateUnauthenticated {
		c.mu.Unlock()
		return
	}
	c.state = StateAuthenticated
	c.identity = identity
	watchers := c.watcherListLocked()
	c.mu.Unlock()

	for _, cb := range watchers {
		cb(identity)
	}
}

func (c *Controller) fail() {
	c.mu.Lock()
	if c.state != StateAuthenticating {
		c.mu.Unlock()
		return
	}
	c.state = StateUnauthenticated
	c.identity = nil
	watchers := c.watcherListLocked()
	c.mu.Unlock()

	for _, cb := range watchers {
		cb(nil)
	}
}

func (c *Controller) watcherListLocked() []IdentityFunc {
	watchers := make([]IdentityFunc, 0, len(c.watchers))
	for _, cb := range c.watchers {
		watchers = append(watchers, cb)
	}
	return watchers
}
