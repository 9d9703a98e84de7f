package stats

import (
	"runtime"
	"sync/atomic"
	"time"
)

var (
	globalStats = &Counters{}
	startedAt   = time.Now()
)

// Counters are process-wide generation and challenge totals
type Counters struct {
	Obfuscations     uint64 `json:"obfuscations"`
	Captchas         uint64 `json:"captchas"`
	Injections       uint64 `json:"injections"`
	ChallengesArmed  uint64 `json:"challengesArmed"`
	Verified         uint64 `json:"verified"`
	RejectedSpeed    uint64 `json:"rejectedSpeed"`
	RejectedMismatch uint64 `json:"rejectedMismatch"`
	RateLimitBlocks  uint64 `json:"rateLimitBlocks"`
	LuaBlocks        uint64 `json:"luaBlocks"`
}

func IncObfuscations() {
	atomic.AddUint64(&globalStats.Obfuscations, 1)
}

func IncCaptchas() {
	atomic.AddUint64(&globalStats.Captchas, 1)
}

func IncInjections() {
	atomic.AddUint64(&globalStats.Injections, 1)
}

func IncChallengesArmed() {
	atomic.AddUint64(&globalStats.ChallengesArmed, 1)
}

func IncVerified() {
	atomic.AddUint64(&globalStats.Verified, 1)
}

// IncRejected counts a rejection under its reason string
func IncRejected(reason string) {
	switch reason {
	case "SPEED":
		atomic.AddUint64(&globalStats.RejectedSpeed, 1)
	case "MISMATCH":
		atomic.AddUint64(&globalStats.RejectedMismatch, 1)
	}
}

func IncRateLimitBlocks() {
	atomic.AddUint64(&globalStats.RateLimitBlocks, 1)
}

func IncLuaBlocks() {
	atomic.AddUint64(&globalStats.LuaBlocks, 1)
}

func GetStats() Counters {
	return Counters{
		Obfuscations:     atomic.LoadUint64(&globalStats.Obfuscations),
		Captchas:         atomic.LoadUint64(&globalStats.Captchas),
		Injections:       atomic.LoadUint64(&globalStats.Injections),
		ChallengesArmed:  atomic.LoadUint64(&globalStats.ChallengesArmed),
		Verified:         atomic.LoadUint64(&globalStats.Verified),
		RejectedSpeed:    atomic.LoadUint64(&globalStats.RejectedSpeed),
		RejectedMismatch: atomic.LoadUint64(&globalStats.RejectedMismatch),
		RateLimitBlocks:  atomic.LoadUint64(&globalStats.RateLimitBlocks),
		LuaBlocks:        atomic.LoadUint64(&globalStats.LuaBlocks),
	}
}

func ResetStats() {
	atomic.StoreUint64(&globalStats.Obfuscations, 0)
	atomic.StoreUint64(&globalStats.Captchas, 0)
	atomic.StoreUint64(&globalStats.Injections, 0)
	atomic.StoreUint64(&globalStats.ChallengesArmed, 0)
	atomic.StoreUint64(&globalStats.Verified, 0)
	atomic.StoreUint64(&globalStats.RejectedSpeed, 0)
	atomic.StoreUint64(&globalStats.RejectedMismatch, 0)
	atomic.StoreUint64(&globalStats.RateLimitBlocks, 0)
	atomic.StoreUint64(&globalStats.LuaBlocks, 0)
}

// Runtime is the process part of the /stats payload
type Runtime struct {
	UptimeSeconds  int64  `json:"uptimeSeconds"`
	NumGoroutines  int    `json:"numGoroutines"`
	HeapAllocBytes uint64 `json:"heapAllocBytes"`
	NumGC          uint32 `json:"numGC"`
	Timestamp      int64  `json:"timestamp"`
}

func CollectRuntime() Runtime {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	now := time.Now()
	return Runtime{
		UptimeSeconds:  int64(now.Sub(startedAt).Seconds()),
		NumGoroutines:  runtime.NumGoroutine(),
		HeapAllocBytes: m.HeapAlloc,
		NumGC:          m.NumGC,
		Timestamp:      now.Unix(),
	}
}

// Snapshot is everything /stats reports
type Snapshot struct {
	Counters Counters `json:"counters"`
	Runtime  Runtime  `json:"runtime"`
}

func Collect() Snapshot {
	return Snapshot{Counters: GetStats(), Runtime: CollectRuntime()}
}
