package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObfuscationNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      ObfuscationConfig
		want    ObfuscationConfig
		wantErr bool
	}{
		{
			name: "zero value",
			in:   ObfuscationConfig{},
			want: ObfuscationConfig{Entropy: DefaultEntropy, WrapperMode: WrapperNone, ComponentName: DefaultComponentName},
		},
		{
			name: "entropy clamped",
			in:   ObfuscationConfig{Entropy: 99, Decoys: -3},
			want: ObfuscationConfig{Entropy: MaxEntropy, WrapperMode: WrapperNone, ComponentName: DefaultComponentName},
		},
		{
			name: "wrapper mode case folded",
			in:   ObfuscationConfig{Entropy: 2, WrapperMode: "Tailwind"},
			want: ObfuscationConfig{Entropy: 2, WrapperMode: WrapperTailwind, ComponentName: DefaultComponentName},
		},
		{
			name:    "unknown wrapper mode",
			in:      ObfuscationConfig{Entropy: 2, WrapperMode: "sass"},
			want:    ObfuscationConfig{Entropy: 2, WrapperMode: WrapperNone, ComponentName: DefaultComponentName},
			wantErr: true,
		},
		{
			name:    "invalid component name",
			in:      ObfuscationConfig{Entropy: 1, ComponentName: "lower-case"},
			want:    ObfuscationConfig{Entropy: 1, WrapperMode: WrapperNone, ComponentName: DefaultComponentName},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.in
			err := cfg.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestChallengeNormalize(t *testing.T) {
	cfg := ChallengeConfig{SpeedBumpThresholdMs: 200, CodeLength: 50, Noise: -1, TTLSeconds: -5}
	assert.NoError(t, cfg.Normalize())
	assert.Equal(t, SpeedBumpThresholdMs, cfg.SpeedBumpThresholdMs)
	assert.Equal(t, MaxCodeLength, cfg.CodeLength)
	assert.Equal(t, 0, cfg.Noise)
	assert.Equal(t, 0, cfg.TTLSeconds)
	assert.Equal(t, DefaultElementID, cfg.ElementID)

	cfg = ChallengeConfig{CodeLength: 2, ElementID: "1bad id"}
	assert.Error(t, cfg.Normalize())
	assert.Equal(t, MinCodeLength, cfg.CodeLength)
	assert.Equal(t, DefaultElementID, cfg.ElementID)
}

func TestProfileValidate(t *testing.T) {
	p := &Profile{}
	assert.NoError(t, p.Validate())
	assert.Equal(t, DefaultListen, p.Server.Listen)
	assert.Equal(t, DefaultInjectAnchor, p.Server.InjectAnchor)

	p.Server.RateLimit.MaxRequests = -1
	assert.Error(t, p.Validate())
}

func TestChallengeTTL(t *testing.T) {
	assert.Zero(t, ChallengeConfig{}.TTL())
	assert.Equal(t, int64(300), int64(DefaultChallenge().TTL().Seconds()))
}
