package config

import (
	"github.com/defenra/bidi/dialect"
)

type WrapperMode string

const (
	WrapperNone     WrapperMode = "none"
	WrapperTailwind WrapperMode = "tailwind"
	WrapperCSS      WrapperMode = "css"
)

// Profile is everything the generators and the demo server need
type Profile struct {
	Payload     string            `json:"payload" yaml:"payload" toml:"payload"`
	Obfuscation ObfuscationConfig `json:"obfuscation" yaml:"obfuscation" toml:"obfuscation"`
	Challenge   ChallengeConfig   `json:"challenge" yaml:"challenge" toml:"challenge"`
	Server      ServerConfig      `json:"server" yaml:"server" toml:"server"`
}

type ObfuscationConfig struct {
	Cloak         bool            `json:"cloak" yaml:"cloak" toml:"cloak"`
	Entropy       int             `json:"entropy" yaml:"entropy" toml:"entropy"`
	WrapperMode   WrapperMode     `json:"wrapperMode" yaml:"wrapperMode" toml:"wrapperMode"`
	WrapperValue  string          `json:"wrapperValue" yaml:"wrapperValue" toml:"wrapperValue"`
	OutputDialect dialect.Dialect `json:"outputDialect" yaml:"outputDialect" toml:"outputDialect"`
	Decoys        int             `json:"decoys" yaml:"decoys" toml:"decoys"`                      // hidden junk spans between chunks
	Seed          int64           `json:"seed" yaml:"seed" toml:"seed"`                            // 0 keeps the default deterministic layout
	ComponentName string          `json:"componentName" yaml:"componentName" toml:"componentName"` // component dialect only
}

type ChallengeConfig struct {
	SpeedBumpEnabled     bool            `json:"speedBumpEnabled" yaml:"speedBumpEnabled" toml:"speedBumpEnabled"`
	SpeedBumpThresholdMs int             `json:"speedBumpThresholdMs" yaml:"speedBumpThresholdMs" toml:"speedBumpThresholdMs"`
	OutputDialect        dialect.Dialect `json:"outputDialect" yaml:"outputDialect" toml:"outputDialect"`
	Shadow               bool            `json:"shadow" yaml:"shadow" toml:"shadow"`
	CodeLength           int             `json:"codeLength" yaml:"codeLength" toml:"codeLength"`
	Noise                int             `json:"noise" yaml:"noise" toml:"noise"`
	CaseSensitive        bool            `json:"caseSensitive" yaml:"caseSensitive" toml:"caseSensitive"`
	TTLSeconds           int             `json:"ttlSeconds" yaml:"ttlSeconds" toml:"ttlSeconds"`
	ElementID            string          `json:"elementId" yaml:"elementId" toml:"elementId"`
}

type ServerConfig struct {
	Listen         string    `json:"listen" yaml:"listen" toml:"listen"`
	RateLimit      RateLimit `json:"rateLimit" yaml:"rateLimit" toml:"rateLimit"`
	LuaRulesPath   string    `json:"luaRulesPath" yaml:"luaRulesPath" toml:"luaRulesPath"`
	ProxyIPHeaders []string  `json:"proxyIpHeaders" yaml:"proxyIpHeaders" toml:"proxyIpHeaders"`
	InjectAnchor   string    `json:"injectAnchor" yaml:"injectAnchor" toml:"injectAnchor"`
}

type RateLimit struct {
	WindowSeconds        int `json:"windowSeconds" yaml:"windowSeconds" toml:"windowSeconds"`
	MaxRequests          int `json:"maxRequests" yaml:"maxRequests" toml:"maxRequests"`
	BlockDurationSeconds int `json:"blockDurationSeconds" yaml:"blockDurationSeconds" toml:"blockDurationSeconds"`
}
