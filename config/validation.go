package config

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
)

var (
	elementIDPattern     = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	componentNamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*$`)
)

// Validate normalizes out-of-range values in place and reports
// configuration that cannot be normalized.
func (p *Profile) Validate() error {
	var errs []error

	if err := p.Obfuscation.Normalize(); err != nil {
		errs = append(errs, fmt.Errorf("obfuscation: %w", err))
	}
	if err := p.Challenge.Normalize(); err != nil {
		errs = append(errs, fmt.Errorf("challenge: %w", err))
	}

	rl := &p.Server.RateLimit
	if rl.WindowSeconds < 0 || rl.MaxRequests < 0 || rl.BlockDurationSeconds < 0 {
		errs = append(errs, errors.New("server: rate limit values must not be negative"))
	}
	if p.Server.Listen == "" {
		p.Server.Listen = DefaultListen
	}
	if p.Server.InjectAnchor == "" {
		p.Server.InjectAnchor = DefaultInjectAnchor
	}

	return errors.Join(errs...)
}

// Normalize clamps entropy and decoys and canonicalizes the wrapper mode
func (c *ObfuscationConfig) Normalize() error {
	if c.Entropy < 1 {
		c.Entropy = DefaultEntropy
	}
	if c.Entropy > MaxEntropy {
		c.Entropy = MaxEntropy
	}
	if c.Decoys < 0 {
		c.Decoys = 0
	}
	if c.ComponentName == "" {
		c.ComponentName = DefaultComponentName
	}

	var errs []error
	if !componentNamePattern.MatchString(c.ComponentName) {
		errs = append(errs, fmt.Errorf("invalid component name %q", c.ComponentName))
		c.ComponentName = DefaultComponentName
	}

	switch WrapperMode(strings.ToLower(string(c.WrapperMode))) {
	case "", WrapperNone:
		c.WrapperMode = WrapperNone
	case WrapperTailwind:
		c.WrapperMode = WrapperTailwind
	case WrapperCSS:
		c.WrapperMode = WrapperCSS
	default:
		errs = append(errs, fmt.Errorf("unknown wrapper mode %q", c.WrapperMode))
		c.WrapperMode = WrapperNone
	}

	return errors.Join(errs...)
}

// Normalize pins the speed bump threshold and clamps the code length
func (c *ChallengeConfig) Normalize() error {
	if c.SpeedBumpThresholdMs != SpeedBumpThresholdMs {
		if c.SpeedBumpThresholdMs != 0 {
			log.Printf("[Config] Speed bump threshold is fixed at %dms, ignoring %d", SpeedBumpThresholdMs, c.SpeedBumpThresholdMs)
		}
		c.SpeedBumpThresholdMs = SpeedBumpThresholdMs
	}
	if c.CodeLength == 0 {
		c.CodeLength = DefaultCodeLength
	}
	if c.CodeLength < MinCodeLength {
		c.CodeLength = MinCodeLength
	}
	if c.CodeLength > MaxCodeLength {
		c.CodeLength = MaxCodeLength
	}
	if c.Noise < 0 {
		c.Noise = 0
	}
	if c.TTLSeconds < 0 {
		c.TTLSeconds = 0
	}
	if c.ElementID == "" {
		c.ElementID = DefaultElementID
	}
	if !elementIDPattern.MatchString(c.ElementID) {
		err := fmt.Errorf("invalid element id %q", c.ElementID)
		c.ElementID = DefaultElementID
		return err
	}
	return nil
}
