package captcha

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/defenra/bidi/config"
)

var ErrUnknownChallenge = errors.New("unknown or expired challenge")

// Instance is one live challenge held by the registry
type Instance struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time

	mu       sync.Mutex
	protocol *Protocol
}

// Registry keeps server-side challenge instances by id. Each instance has
// its own lock, so validating one challenge never blocks another.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	cfg       config.ChallengeConfig
	clock     Clock
	lifetime  time.Duration
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewRegistry starts a registry and its cleanup loop
func NewRegistry(cfg config.ChallengeConfig, clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	lifetime := cfg.TTL()
	if lifetime <= 0 {
		lifetime = config.DefaultTTLSeconds * time.Second
	}

	r := &Registry{
		instances: make(map[string]*Instance),
		cfg:       cfg,
		clock:     clock,
		lifetime:  lifetime,
		stopChan:  make(chan struct{}),
	}

	go r.cleanup()
	return r
}

// Create arms a new challenge and returns its id and current secret
func (r *Registry) Create() (string, Secret) {
	p := NewProtocol(r.cfg, nil, r.clock)
	p.Arm()

	now := r.clock.Now()
	inst := &Instance{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(r.lifetime),
		protocol:  p,
	}

	r.mu.Lock()
	r.instances[inst.ID] = inst
	r.mu.Unlock()

	return inst.ID, p.Secret()
}

// Validate submits value to the challenge with the given id. Verified
// challenges are removed; rejected ones stay armed with a new secret.
func (r *Registry) Validate(id, value string) (Result, Secret, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Result{}, Secret{}, ErrUnknownChallenge
	}

	r.mu.RLock()
	inst, exists := r.instances[id]
	r.mu.RUnlock()

	if !exists {
		return Result{}, Secret{}, ErrUnknownChallenge
	}

	now := r.clock.Now()
	inst.mu.Lock()
	if now.After(inst.ExpiresAt) {
		inst.mu.Unlock()
		r.remove(id)
		return Result{}, Secret{}, ErrUnknownChallenge
	}
	res := inst.protocol.Submit(value)
	secret := inst.protocol.Secret()
	if !res.Verified {
		inst.ExpiresAt = now.Add(r.lifetime)
	}
	inst.mu.Unlock()

	if res.Verified {
		r.remove(id)
	}
	return res, secret, nil
}

// Secret returns the current code of a live challenge
func (r *Registry) Secret(id string) (Secret, error) {
	r.mu.RLock()
	inst, exists := r.instances[id]
	r.mu.RUnlock()
	if !exists {
		return Secret{}, ErrUnknownChallenge
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.protocol.Secret(), nil
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.instances, id)
	r.mu.Unlock()
}

// Len returns the number of live challenges
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Sweep drops expired challenges and returns how many were removed
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	now := r.clock.Now()
	for id, inst := range r.instances {
		inst.mu.Lock()
		expired := now.After(inst.ExpiresAt)
		inst.mu.Unlock()
		if expired {
			delete(r.instances, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Printf("[Captcha] Removed %d expired challenges", n)
			}
		case <-r.stopChan:
			return
		}
	}
}

// Stop ends the cleanup loop
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
}
