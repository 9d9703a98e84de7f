package health

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"github.com/defenra/bidi/logger"
	"github.com/defenra/bidi/stats"
)

// ChallengeCounter is the part of the challenge registry health reports on
type ChallengeCounter interface {
	Len() int
}

type Handler struct {
	startTime  time.Time
	challenges ChallengeCounter
}

type HealthResponse struct {
	Status         string    `json:"status"`
	Uptime         string    `json:"uptime"`
	LiveChallenges int       `json:"liveChallenges"`
	MemoryUsage    string    `json:"memoryUsage"`
	Timestamp      time.Time `json:"timestamp"`
}

type StatsResponse struct {
	stats.Snapshot
	LiveChallenges int               `json:"liveChallenges"`
	LogEvents      map[string]uint64 `json:"logEvents"`
}

func NewHandler(challenges ChallengeCounter) *Handler {
	return &Handler{startTime: time.Now(), challenges: challenges}
}

// Register mounts /health and /stats
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.handleStats).Methods(http.MethodGet)
}

func (h *Handler) liveChallenges() int {
	if h.challenges == nil {
		return 0
	}
	return h.challenges.Len()
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		LiveChallenges: h.liveChallenges(),
		MemoryUsage:    formatBytes(m.Alloc),
		Timestamp:      time.Now(),
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Snapshot:       stats.Collect(),
		LiveChallenges: h.liveChallenges(),
		LogEvents:      logger.GetRateLimitedLogger().GetStats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Health] Failed to encode response: %v", err)
	}
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
