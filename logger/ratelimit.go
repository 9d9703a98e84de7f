package logger

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// RateLimitedLogger throttles repetitive log lines per key. The first
// event of a key is always written; after that a line is written every
// sampleRate events or once minInterval has passed, carrying the number of
// events it stands for.
type RateLimitedLogger struct {
	mu          sync.Mutex
	counters    map[string]*logCounter
	sampleRate  int
	minInterval time.Duration
	output      func(string)
	now         func() time.Time
}

type logCounter struct {
	pending uint64 // events since the last written line
	total   uint64
	lastLog time.Time
}

var (
	globalLogger *RateLimitedLogger
	once         sync.Once
)

// GetRateLimitedLogger returns the process-wide logger
func GetRateLimitedLogger() *RateLimitedLogger {
	once.Do(func() {
		globalLogger = New(100, time.Second)
	})
	return globalLogger
}

// New creates a logger writing through the standard log package
func New(sampleRate int, minInterval time.Duration) *RateLimitedLogger {
	if sampleRate < 1 {
		sampleRate = 1
	}
	return &RateLimitedLogger{
		counters:    make(map[string]*logCounter),
		sampleRate:  sampleRate,
		minInterval: minInterval,
		output:      func(s string) { log.Print(s) },
		now:         time.Now,
	}
}

func (rl *RateLimitedLogger) SetSampleRate(rate int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rate < 1 {
		rate = 1
	}
	rl.sampleRate = rate
}

func (rl *RateLimitedLogger) SetMinInterval(interval time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.minInterval = interval
}

// Printf takes the key from a leading "[Tag] " in format; untagged lines
// are written unthrottled.
func (rl *RateLimitedLogger) Printf(format string, v ...interface{}) {
	key, rest := splitTag(format)
	if key == "" {
		rl.output(fmt.Sprintf(format, v...))
		return
	}
	rl.PrintfLimited(key, rest, v...)
}

// PrintfLimited logs under key, subject to throttling
func (rl *RateLimitedLogger) PrintfLimited(key string, format string, v ...interface{}) {
	rl.mu.Lock()
	counter, exists := rl.counters[key]
	if !exists {
		counter = &logCounter{}
		rl.counters[key] = counter
	}

	now := rl.now()
	counter.pending++
	counter.total++

	shouldLog := counter.lastLog.IsZero() ||
		counter.pending >= uint64(rl.sampleRate) ||
		now.Sub(counter.lastLog) >= rl.minInterval

	var events uint64
	if shouldLog {
		events = counter.pending
		counter.pending = 0
		counter.lastLog = now
	}
	rl.mu.Unlock()

	if !shouldLog {
		return
	}
	if events > 1 {
		rl.output(fmt.Sprintf("[%s] (+%d events) %s", key, events, fmt.Sprintf(format, v...)))
	} else {
		rl.output(fmt.Sprintf("[%s] %s", key, fmt.Sprintf(format, v...)))
	}
}

// PrintfCritical always logs
func (rl *RateLimitedLogger) PrintfCritical(format string, v ...interface{}) {
	rl.output("[CRITICAL] " + fmt.Sprintf(format, v...))
}

// GetStats returns the number of events seen per key
func (rl *RateLimitedLogger) GetStats() map[string]uint64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := make(map[string]uint64, len(rl.counters))
	for key, counter := range rl.counters {
		stats[key] = counter.total
	}
	return stats
}

func (rl *RateLimitedLogger) ResetStats() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.counters = make(map[string]*logCounter)
}

func splitTag(format string) (key, rest string) {
	if len(format) < 3 || format[0] != '[' {
		return "", format
	}
	for i := 1; i < len(format) && i < 32; i++ {
		if format[i] == ']' {
			rest = format[i+1:]
			if len(rest) > 0 && rest[0] == ' ' {
				rest = rest[1:]
			}
			return format[1:i], rest
		}
	}
	return "", format
}
