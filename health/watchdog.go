package health

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/defenra/bidi/utils"
)

// Watchdog pings systemd while the server is alive
type Watchdog struct {
	interval time.Duration
	notify   func() error
}

// NewWatchdog reads the timeout systemd granted us, if any
func NewWatchdog() *Watchdog {
	return &Watchdog{
		interval: watchdogInterval(os.Getenv("WATCHDOG_USEC")),
		notify: func() error {
			_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			return err
		},
	}
}

// Enabled reports whether systemd expects pings
func (w *Watchdog) Enabled() bool {
	return w.interval > 0
}

// Run pings at half the watchdog timeout until ctx ends
func (w *Watchdog) Run(ctx context.Context) {
	if !w.Enabled() {
		log.Println("[Watchdog] Not enabled (no WATCHDOG_USEC)")
		return
	}

	tick := w.interval / 2
	if tick < time.Second {
		tick = time.Second
	}
	log.Printf("[Watchdog] Notifying every %v (timeout %v)", tick, w.interval)

	utils.SafeGo(func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.notify(); err != nil {
					log.Printf("[Watchdog] Failed to notify systemd: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}, "watchdog")
}

func watchdogInterval(usecValue string) time.Duration {
	if usecValue == "" {
		return 0
	}
	usec, err := strconv.ParseInt(usecValue, 10, 64)
	if err != nil || usec <= 0 {
		log.Printf("[Watchdog] Invalid WATCHDOG_USEC value: %s", usecValue)
		return 0
	}
	return time.Duration(usec) * time.Microsecond
}

// NotifyReady tells systemd the server accepts requests
func NotifyReady() {
	if supported, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Printf("[Watchdog] Failed to send ready notification: %v", err)
	} else if supported {
		log.Println("[Watchdog] Sent READY to systemd")
	}
}

// NotifyStopping tells systemd a graceful shutdown has begun
func NotifyStopping() {
	if supported, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Printf("[Watchdog] Failed to send stopping notification: %v", err)
	} else if supported {
		log.Println("[Watchdog] Sent STOPPING to systemd")
	}
}
