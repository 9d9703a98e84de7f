package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/defenra/bidi/dialect"
)

// ApplyEnvOverrides lets deployments override a profile without editing it
func ApplyEnvOverrides(p *Profile) {
	if v := os.Getenv("BIDI_PAYLOAD"); v != "" {
		p.Payload = v
	}

	p.Obfuscation.Entropy = getEnvInt("BIDI_ENTROPY", p.Obfuscation.Entropy)
	p.Obfuscation.Cloak = getEnvBool("BIDI_CLOAK", p.Obfuscation.Cloak)
	p.Obfuscation.Decoys = getEnvInt("BIDI_DECOYS", p.Obfuscation.Decoys)
	if v := os.Getenv("BIDI_WRAPPER_MODE"); v != "" {
		p.Obfuscation.WrapperMode = WrapperMode(v)
	}
	if v := os.Getenv("BIDI_WRAPPER_VALUE"); v != "" {
		p.Obfuscation.WrapperValue = v
	}

	if v := os.Getenv("BIDI_DIALECT"); v != "" {
		if d, err := dialect.Parse(v); err != nil {
			log.Printf("[Config] Ignoring BIDI_DIALECT: %v", err)
		} else {
			p.Obfuscation.OutputDialect = d
			p.Challenge.OutputDialect = d
		}
	}

	p.Challenge.SpeedBumpEnabled = getEnvBool("BIDI_SPEED_BUMP", p.Challenge.SpeedBumpEnabled)
	p.Challenge.Shadow = getEnvBool("BIDI_CAPTCHA_SHADOW", p.Challenge.Shadow)
	p.Challenge.TTLSeconds = getEnvInt("BIDI_CHALLENGE_TTL", p.Challenge.TTLSeconds)

	if v := os.Getenv("BIDI_LISTEN"); v != "" {
		p.Server.Listen = v
	}
	if v := os.Getenv("BIDI_LUA_RULES"); v != "" {
		p.Server.LuaRulesPath = v
	}
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var result int
	if _, err := fmt.Sscanf(val, "%d", &result); err != nil {
		return defaultVal
	}
	return result
}

func getEnvBool(key string, defaultVal bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultVal
}
