package config

import (
	"time"

	"github.com/defenra/bidi/dialect"
)

const (
	// SpeedBumpThresholdMs is not tunable: the generated widgets and the
	// server-side protocol all assume this value.
	SpeedBumpThresholdMs = 1500

	DefaultEntropy       = 1
	MaxEntropy           = 8
	DefaultCodeLength    = 6
	MinCodeLength        = 4
	MaxCodeLength        = 12
	DefaultTTLSeconds    = 300
	DefaultListen        = ":8080"
	DefaultElementID     = "bidi-captcha"
	DefaultComponentName = "BiDiText"
	DefaultInjectAnchor  = "<body>"
)

// SpeedBumpThreshold is SpeedBumpThresholdMs as a duration
const SpeedBumpThreshold = SpeedBumpThresholdMs * time.Millisecond

// DefaultProfile returns a profile with every field set to its default
func DefaultProfile() *Profile {
	return &Profile{
		Obfuscation: DefaultObfuscation(),
		Challenge:   DefaultChallenge(),
		Server: ServerConfig{
			Listen: DefaultListen,
			RateLimit: RateLimit{
				WindowSeconds:        10,
				MaxRequests:          50,
				BlockDurationSeconds: 60,
			},
			ProxyIPHeaders: []string{"X-Forwarded-For", "X-Real-IP", "CF-Connecting-IP"},
			InjectAnchor:   DefaultInjectAnchor,
		},
	}
}

func DefaultObfuscation() ObfuscationConfig {
	return ObfuscationConfig{
		Entropy:       DefaultEntropy,
		WrapperMode:   WrapperNone,
		OutputDialect: dialect.Plain,
		ComponentName: DefaultComponentName,
	}
}

func DefaultChallenge() ChallengeConfig {
	return ChallengeConfig{
		SpeedBumpThresholdMs: SpeedBumpThresholdMs,
		OutputDialect:        dialect.Plain,
		CodeLength:           DefaultCodeLength,
		TTLSeconds:           DefaultTTLSeconds,
		ElementID:            DefaultElementID,
	}
}

// TTL returns the secret lifetime; zero disables expiry
func (c ChallengeConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TTLSeconds) * time.Second
}
