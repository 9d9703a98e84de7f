// Package server exposes the generators over HTTP: obfuscation, widget
// emission, live challenges validated server side, and page injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/defenra/bidi/captcha"
	"github.com/defenra/bidi/config"
	"github.com/defenra/bidi/health"
	"github.com/defenra/bidi/logger"
	"github.com/defenra/bidi/stats"
	"github.com/defenra/bidi/utils"
	"github.com/defenra/bidi/waf"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	mu      sync.RWMutex
	profile *config.Profile
	rules   *waf.LuaWAF

	registry *captcha.Registry
	limiter  *RateLimiter
	router   *mux.Router
}

// New builds a server for p. Challenge settings are fixed for the
// lifetime of the registry; Apply updates everything else.
func New(p *config.Profile, clock captcha.Clock) (*Server, error) {
	if clock == nil {
		clock = captcha.SystemClock{}
	}

	s := &Server{
		registry: captcha.NewRegistry(p.Challenge, clock),
		limiter:  NewRateLimiter(),
	}
	if err := s.Apply(p); err != nil {
		s.registry.Stop()
		return nil, err
	}

	s.router = mux.NewRouter()
	s.router.Use(s.recoverMiddleware, s.rateLimitMiddleware)

	s.router.HandleFunc("/api/obfuscate", s.handleObfuscate).Methods(http.MethodPost)
	s.router.HandleFunc("/api/captcha", s.handleCaptcha).Methods(http.MethodPost)
	s.router.HandleFunc("/api/challenges", s.handleCreateChallenge).Methods(http.MethodPost)
	s.router.HandleFunc("/api/challenges/{id}/validate", s.handleValidateChallenge).Methods(http.MethodPost)
	s.router.HandleFunc("/api/inject", s.handleInject).Methods(http.MethodPost)

	health.NewHandler(s.registry).Register(s.router)
	return s, nil
}

// Apply swaps in a new profile and reloads the Lua rules it names. On
// error the previous profile stays active.
func (s *Server) Apply(p *config.Profile) error {
	var rules *waf.LuaWAF
	if p.Server.LuaRulesPath != "" {
		var err error
		rules, err = waf.LoadLuaWAF(p.Server.LuaRulesPath)
		if err != nil {
			return fmt.Errorf("load lua rules: %w", err)
		}
		log.Printf("[Server] Loaded Lua rules from %s", p.Server.LuaRulesPath)
	}

	s.mu.Lock()
	s.profile = p
	s.rules = rules
	s.mu.Unlock()
	return nil
}

func (s *Server) current() (*config.Profile, *waf.LuaWAF) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile, s.rules
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the profile's listen address until ctx ends, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	p, _ := s.current()
	window := time.Duration(p.Server.RateLimit.WindowSeconds) * time.Second
	s.limiter.StartCleanup(ctx, window)

	srv := &http.Server{
		Addr:              p.Server.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	utils.SafeGo(func() {
		log.Printf("[Server] Listening on %s", p.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}, "http-server")

	health.NotifyReady()
	health.NewWatchdog().Run(ctx)

	select {
	case err, ok := <-errChan:
		s.registry.Stop()
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	health.NotifyStopping()
	log.Println("[Server] Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.registry.Stop()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Println("[Server] Stopped")
	return nil
}

// Close releases the challenge registry for servers that never ran
func (s *Server) Close() {
	s.registry.Stop()
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer utils.Recover(r.Method+" "+r.URL.Path, func(any) {
			writeError(w, http.StatusInternalServerError, "internal error")
		})
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := s.current()
		ip := ClientIP(r, p.Server.ProxyIPHeaders)
		if allowed, reason := s.limiter.Allow(ip, p.Server.RateLimit); !allowed {
			stats.IncRateLimitBlocks()
			logger.GetRateLimitedLogger().Printf("[RateLimit] %s: %s", ip, reason)
			writeError(w, http.StatusTooManyRequests, reason)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkRules runs the Lua rules and writes the block response if they
// stop the request.
func (s *Server) checkRules(w http.ResponseWriter, r *http.Request, gen waf.Generation) bool {
	_, rules := s.current()
	if rules == nil {
		return true
	}

	v := rules.Execute(r, gen)
	if !v.Blocked {
		return true
	}

	stats.IncLuaBlocks()
	logger.GetRateLimitedLogger().Printf("[WAF] Blocked %s %s (%s): %d", r.Method, r.URL.Path, gen.Kind, v.StatusCode)
	for k, val := range v.Headers {
		w.Header().Set(k, val)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(v.StatusCode)
	fmt.Fprint(w, v.Body)
	return false
}
