package captcha

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defenra/bidi/config"
)

func newTestRegistry(t *testing.T, cfg config.ChallengeConfig) (*Registry, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	r := NewRegistry(cfg, clock)
	t.Cleanup(r.Stop)
	return r, clock
}

func TestRegistryCreateAndVerify(t *testing.T) {
	r, clock := newTestRegistry(t, speedBumpConfig())

	id, secret := r.Create()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Len(t, secret.Code, config.DefaultCodeLength)
	assert.Equal(t, 1, r.Len())

	clock.Advance(2 * time.Second)
	res, _, err := r.Validate(id, secret.Code)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, 0, r.Len())

	_, _, err = r.Validate(id, secret.Code)
	assert.ErrorIs(t, err, ErrUnknownChallenge)
}

func TestRegistryRejectionKeepsInstance(t *testing.T) {
	r, clock := newTestRegistry(t, speedBumpConfig())
	id, secret := r.Create()

	clock.Advance(100 * time.Millisecond)
	res, next, err := r.Validate(id, secret.Code)
	require.NoError(t, err)
	assert.Equal(t, ReasonSpeed, res.Reason)
	assert.NotEqual(t, secret.Code, next.Code)

	current, err := r.Secret(id)
	require.NoError(t, err)
	assert.Equal(t, next, current)

	clock.Advance(2 * time.Second)
	res, _, err = r.Validate(id, current.Code)
	require.NoError(t, err)
	assert.True(t, res.Verified)
}

func TestRegistryUnknownIDs(t *testing.T) {
	r, _ := newTestRegistry(t, config.DefaultChallenge())

	_, _, err := r.Validate("not-a-uuid", "X")
	assert.ErrorIs(t, err, ErrUnknownChallenge)
	_, _, err = r.Validate(uuid.NewString(), "X")
	assert.ErrorIs(t, err, ErrUnknownChallenge)
	_, err = r.Secret(uuid.NewString())
	assert.ErrorIs(t, err, ErrUnknownChallenge)
}

func TestRegistryExpiry(t *testing.T) {
	cfg := config.DefaultChallenge()
	cfg.TTLSeconds = 60
	r, clock := newTestRegistry(t, cfg)

	stale, secret := r.Create()
	clock.Advance(30 * time.Second)
	fresh, _ := r.Create()

	clock.Advance(45 * time.Second)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())

	_, _, err := r.Validate(stale, secret.Code)
	assert.ErrorIs(t, err, ErrUnknownChallenge)

	_, err = r.Secret(fresh)
	assert.NoError(t, err)
}

func TestRegistryConcurrentInstances(t *testing.T) {
	r, clock := newTestRegistry(t, config.DefaultChallenge())
	clock.Advance(time.Second)

	type created struct {
		id   string
		code string
	}
	items := make([]created, 50)
	for i := range items {
		id, secret := r.Create()
		items[i] = created{id: id, code: secret.Code}
	}

	var wg sync.WaitGroup
	results := make([]bool, len(items))
	for i, it := range items {
		wg.Add(1)
		go func(i int, it created) {
			defer wg.Done()
			res, _, err := r.Validate(it.id, it.code)
			results[i] = err == nil && res.Verified
		}(i, it)
	}
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "instance %d", i)
	}
	assert.Equal(t, 0, r.Len())
}

func TestRegistryStopIsIdempotent(t *testing.T) {
	r := NewRegistry(config.DefaultChallenge(), nil)
	r.Stop()
	r.Stop()
}
