package captcha

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/defenra/bidi/config"
)

type State int

const (
	Idle State = iota
	Armed
	Submitted
	Verified
	Rejected
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Submitted:
		return "submitted"
	case Verified:
		return "verified"
	case Rejected:
		return "rejected"
	default:
		return "idle"
	}
}

// Reason is the failure vocabulary shared with the generated widgets
type Reason string

const (
	ReasonSpeed    Reason = "SPEED"
	ReasonMismatch Reason = "MISMATCH"
)

// Result is the outcome of one submission. Reason is empty when Verified.
type Result struct {
	Verified bool   `json:"verified"`
	Reason   Reason `json:"reason,omitempty"`
}

// Clock is read at arm time and at submit time. time.Now carries a
// monotonic reading, so SystemClock is safe across wall clock changes.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Protocol is one widget instance: its secret, its arm timestamp and its
// state. It is not safe for concurrent use; Registry serializes access.
type Protocol struct {
	cfg   config.ChallengeConfig
	gen   *Generator
	clock Clock

	state     State
	secret    Secret
	startTime *time.Time
}

// NewProtocol creates an idle instance. gen and clock may be nil.
func NewProtocol(cfg config.ChallengeConfig, gen *Generator, clock Clock) *Protocol {
	if clock == nil {
		clock = SystemClock{}
	}
	if gen == nil {
		gen = NewGeneratorWithSource(cfg.CodeLength, nil, clock)
	}
	return &Protocol{cfg: cfg, gen: gen, clock: clock}
}

// Arm activates the challenge, drawing a secret if there is none yet and
// recording the start time when the speed bump is on.
func (p *Protocol) Arm() {
	if p.state == Verified {
		return
	}
	if p.secret.Code == "" {
		p.secret = p.gen.Generate()
	}
	if p.cfg.SpeedBumpEnabled {
		now := p.clock.Now()
		p.startTime = &now
	}
	p.state = Armed
}

// Submit checks a candidate value. The speed guard runs before the
// correctness guard; any rejection replaces the secret and re-arms.
func (p *Protocol) Submit(value string) Result {
	if p.state == Verified {
		return Result{Verified: true}
	}

	now := p.clock.Now()
	p.state = Submitted

	if p.cfg.SpeedBumpEnabled && (p.startTime == nil || now.Sub(*p.startTime) < config.SpeedBumpThreshold) {
		return p.reject(ReasonSpeed)
	}
	if p.secret.Code == "" || p.secret.Expired(p.cfg.TTL(), now) || !p.matches(value) {
		return p.reject(ReasonMismatch)
	}

	p.state = Verified
	p.startTime = nil
	return Result{Verified: true}
}

// Validate is Submit with the widget's callback contract: onFail receives
// exactly one reason on failure and is never called on success.
func (p *Protocol) Validate(value string, onFail func(Reason)) bool {
	res := p.Submit(value)
	if !res.Verified && onFail != nil {
		onFail(res.Reason)
	}
	return res.Verified
}

func (p *Protocol) reject(reason Reason) Result {
	p.state = Rejected
	p.startTime = nil
	p.secret = p.gen.Generate()
	p.Arm()
	return Result{Reason: reason}
}

func (p *Protocol) matches(value string) bool {
	value = strings.TrimSpace(value)
	code := p.secret.Code
	if !p.cfg.CaseSensitive {
		value = strings.ToUpper(value)
		code = strings.ToUpper(code)
	}
	return subtle.ConstantTimeCompare([]byte(value), []byte(code)) == 1
}

func (p *Protocol) State() State { return p.state }

// Secret returns the current code, which the OCR view renders
func (p *Protocol) Secret() Secret { return p.secret }

// StartTime reports the arm timestamp; ok is false while unset
func (p *Protocol) StartTime() (t time.Time, ok bool) {
	if p.startTime == nil {
		return time.Time{}, false
	}
	return *p.startTime, true
}
