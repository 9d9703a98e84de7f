package captcha

import (
	"log"
	"regexp"

	"github.com/defenra/bidi/config"
	"github.com/defenra/bidi/dialect"
)

type captchaData struct {
	HostID        string
	Charset       string
	Length        int
	Shadow        bool
	SpeedBump     bool
	ThresholdMs   int
	CaseSensitive bool
}

// Emit renders the BiDiCaptcha widget in the configured dialect. Both
// dialects come from the same data, so guard order and reason strings
// cannot drift apart.
func Emit(cfg config.ChallengeConfig) string {
	if err := cfg.Normalize(); err != nil {
		log.Printf("[Captcha] %v, continuing best effort", err)
	}

	return dialect.Render(cfg.OutputDialect, "captcha", captchaData{
		HostID:        cfg.ElementID,
		Charset:       Charset,
		Length:        cfg.CodeLength,
		Shadow:        cfg.Shadow,
		SpeedBump:     cfg.SpeedBumpEnabled,
		ThresholdMs:   cfg.SpeedBumpThresholdMs,
		CaseSensitive: cfg.CaseSensitive,
	})
}

var guardPattern = regexp.MustCompile(`onFail\('([A-Z]+)'\)`)

// Guards lists the failure reasons in the order the code reports them
func Guards(code string) []Reason {
	var reasons []Reason
	for _, m := range guardPattern.FindAllStringSubmatch(code, -1) {
		reasons = append(reasons, Reason(m[1]))
	}
	return reasons
}
