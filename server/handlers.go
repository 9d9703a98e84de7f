package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"github.com/defenra/bidi/captcha"
	"github.com/defenra/bidi/config"
	"github.com/defenra/bidi/dialect"
	"github.com/defenra/bidi/inject"
	"github.com/defenra/bidi/logger"
	"github.com/defenra/bidi/obfuscator"
	"github.com/defenra/bidi/stats"
	"github.com/defenra/bidi/waf"
)

// Status lines shown next to a validation result
const (
	StatusVerified  = "Verified"
	StatusTooFast   = "Too Fast, Bot!"
	StatusIncorrect = "Incorrect code"
)

type obfuscateRequest struct {
	Payload string                   `json:"payload"`
	Config  config.ObfuscationConfig `json:"config"`
}

type obfuscateResponse struct {
	obfuscator.Output
	Simulation obfuscator.Simulation `json:"simulation"`
}

type captchaRequest struct {
	Config config.ChallengeConfig `json:"config"`
}

type captchaResponse struct {
	Code   string           `json:"code"`
	Guards []captcha.Reason `json:"guards"`
}

type challengeResponse struct {
	ID          string `json:"id"`
	OCRView     string `json:"ocrView"`
	SpeedBump   bool   `json:"speedBump"`
	ThresholdMs int    `json:"thresholdMs"`
}

type validateRequest struct {
	Value string `json:"value"`
}

type validateResponse struct {
	Verified bool           `json:"verified"`
	Reason   captcha.Reason `json:"reason,omitempty"`
	Status   string         `json:"status"`
	OCRView  string         `json:"ocrView,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Request configs are decoded over the profile's, so a body only needs
// the fields it changes.
func (s *Server) handleObfuscate(w http.ResponseWriter, r *http.Request) {
	p, _ := s.current()
	req := obfuscateRequest{Payload: p.Payload, Config: p.Obfuscation}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Payload == "" {
		writeError(w, http.StatusBadRequest, "payload is required")
		return
	}

	gen := waf.Generation{
		Kind:          "obfuscate",
		Dialect:       req.Config.OutputDialect.String(),
		Cloak:         req.Config.Cloak,
		Entropy:       req.Config.Entropy,
		PayloadLength: utf8.RuneCountInString(req.Payload),
	}
	if !s.checkRules(w, r, gen) {
		return
	}

	out, tree := obfuscator.Build(req.Payload, req.Config)
	stats.IncObfuscations()
	writeJSON(w, http.StatusOK, obfuscateResponse{
		Output:     out,
		Simulation: obfuscator.Simulate(tree, req.Payload),
	})
}

func (s *Server) handleCaptcha(w http.ResponseWriter, r *http.Request) {
	p, _ := s.current()
	req := captchaRequest{Config: p.Challenge}
	if !decodeBody(w, r, &req) {
		return
	}

	gen := waf.Generation{
		Kind:      "captcha",
		Dialect:   req.Config.OutputDialect.String(),
		SpeedBump: req.Config.SpeedBumpEnabled,
	}
	if !s.checkRules(w, r, gen) {
		return
	}

	code := captcha.Emit(req.Config)
	stats.IncCaptchas()
	writeJSON(w, http.StatusOK, captchaResponse{Code: code, Guards: captcha.Guards(code)})
}

func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	p, _ := s.current()
	if !s.checkRules(w, r, waf.Generation{Kind: "challenge", SpeedBump: p.Challenge.SpeedBumpEnabled}) {
		return
	}

	id, secret := s.registry.Create()
	stats.IncChallengesArmed()
	writeJSON(w, http.StatusCreated, challengeResponse{
		ID:          id,
		OCRView:     captcha.RenderOCR(secret, p.Challenge.Noise, nil),
		SpeedBump:   p.Challenge.SpeedBumpEnabled,
		ThresholdMs: config.SpeedBumpThresholdMs,
	})
}

func (s *Server) handleValidateChallenge(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.checkRules(w, r, waf.Generation{Kind: "validate"}) {
		return
	}

	id := mux.Vars(r)["id"]
	res, secret, err := s.registry.Validate(id, req.Value)
	if errors.Is(err, captcha.ErrUnknownChallenge) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	resp := validateResponse{Verified: res.Verified, Reason: res.Reason}
	switch {
	case res.Verified:
		stats.IncVerified()
		resp.Status = StatusVerified
	case res.Reason == captcha.ReasonSpeed:
		stats.IncRejected(string(res.Reason))
		resp.Status = StatusTooFast
	default:
		stats.IncRejected(string(res.Reason))
		resp.Status = StatusIncorrect
	}
	if !res.Verified {
		logger.GetRateLimitedLogger().PrintfLimited("challenge-"+string(res.Reason),
			"Rejected challenge %s", id)
		p, _ := s.current()
		resp.OCRView = captcha.RenderOCR(secret, p.Challenge.Noise, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleInject splices a generated snippet into the posted page right
// after the anchor. kind=obfuscate embeds the payload query parameter (or
// the profile payload); anything else embeds the captcha widget. Pages
// get the plain dialect regardless of the profile.
func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	p, _ := s.current()
	q := r.URL.Query()

	anchor := q.Get("anchor")
	if anchor == "" {
		anchor = p.Server.InjectAnchor
	}

	page, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "page too large")
		return
	}

	var snippet string
	gen := waf.Generation{Kind: "inject", Dialect: dialect.Plain.String()}
	if q.Get("kind") == "obfuscate" {
		payload := q.Get("payload")
		if payload == "" {
			payload = p.Payload
		}
		if payload == "" {
			writeError(w, http.StatusBadRequest, "payload is required")
			return
		}
		cfg := p.Obfuscation
		cfg.OutputDialect = dialect.Plain
		gen.Cloak, gen.Entropy, gen.PayloadLength = cfg.Cloak, cfg.Entropy, utf8.RuneCountInString(payload)
		if !s.checkRules(w, r, gen) {
			return
		}
		snippet = obfuscator.Obfuscate(payload, cfg).Raw
	} else {
		cfg := p.Challenge
		cfg.OutputDialect = dialect.Plain
		gen.SpeedBump = cfg.SpeedBumpEnabled
		if !s.checkRules(w, r, gen) {
			return
		}
		snippet = captcha.Emit(cfg)
	}

	out, injected, err := inject.Inject(page, anchor, []byte(snippet))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if injected {
		stats.IncInjections()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Bidi-Injected", strconv.FormatBool(injected))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// decodeBody reads an optional JSON body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
