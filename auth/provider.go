package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"corkboard/schemas"
)

var (
	AuthError       = errors.New("auth")
	ErrInvalidToken = fmt.Errorf("%w.invalid_token", AuthError)
)

// StateFunc receives the current identity, or nil when there is none.
type StateFunc func(identity *schemas.Identity)

type UnsubscribeFunc func()

// Provider is the external identity collaborator.
type Provider interface {
	SignInAnonymously(ctx context.Context) (*schemas.Identity, error)
	SignInWithToken(ctx context.Context, token string) (*schemas.Identity, error)
	OnAuthStateChanged(cb StateFunc) UnsubscribeFunc
}

// LocalProvider issues identities without a remote round trip: anonymous
// sign-ins mint a fresh uid, token sign-ins verify an HS256 JWT against the
// configured secret and take the subject claim as the uid.
type LocalProvider struct {
	secret []byte

	mu          sync.Mutex
	current     *schemas.Identity
	watchers    map[int]StateFunc
	nextWatchId int
}

func NewLocalProvider(secret string) *LocalProvider {
	return &LocalProvider{
		secret:   []byte(secret),
		watchers: map[int]StateFunc{},
	}
}

func (p *LocalProvider) SignInAnonymously(_ context.Context) (*schemas.Identity, error) {
	identity := &schemas.Identity{UID: schemas.UserId(uuid.NewString())}
	p.setCurrent(identity)
	return identity, nil
}

func (p *LocalProvider) SignInWithToken(_ context.Context, token string) (*schemas.Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	identity := &schemas.Identity{UID: schemas.UserId(subject)}
	p.setCurrent(identity)
	return identity, nil
}

// OnAuthStateChanged registers a watcher and delivers the current state to it
// right away, like the hosted collaborator it stands in for.
func (p *LocalProvider) OnAuthStateChanged(cb StateFunc) UnsubscribeFunc {
	p.mu.Lock()
	id := p.nextWatchId
	p.nextWatchId++
	p.watchers[id] = cb
	current := p.current
	p.mu.Unlock()

	cb(current)

	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}
}

func (p *LocalProvider) setCurrent(identity *schemas.Identity) {
	p.mu.Lock()
	p.current = identity
	watchers := make([]StateFunc, 0, len(p.watchers))
	for _, cb := range p.watchers {
		watchers = append(watchers, cb)
	}
	p.mu.Unlock()

	for _, cb := range watchers {
		cb(identity)
	}
}
