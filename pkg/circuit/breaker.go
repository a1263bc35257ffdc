// Package circuit implements a small circuit breaker used around external
// AI calls. Closed lets calls through, Open short-circuits them until a
// cool-down passes, HalfOpen lets a single probe decide which way to go.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-restaurant-analysis/pkg/logging"
	"ai-restaurant-analysis/pkg/metrics"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// ErrOpen indicates the breaker is open and the call was short-circuited.
var ErrOpen = errors.New("circuit open")

// Config tunes one breaker instance.
type Config struct {
	Name              string
	OperationTimeout  time.Duration // per-call timeout, 0 = none
	OpenFor           time.Duration // cool-down before probing again
	MaxConsecFailures int           // consecutive failures to trip
	WindowSize        int           // sliding window of recent calls
	FailureRate       float64       // fraction of failures in window to trip, 0 = disabled
}

type Breaker struct {
	cfg Config
	log *logging.ComponentLogger

	mu         sync.Mutex
	st         State
	nextProbe  time.Time
	consecFail int
	window     []bool // true = success
	idx        int
	filled     int

	mState   *metrics.Gauge
	mOpens   *metrics.Counter
	mSuccess *metrics.Counter
	mFailure *metrics.Counter
}

func New(cfg Config, log *logging.Logger) *Breaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	b := &Breaker{
		cfg:      cfg,
		log:      log.WithComponent("circuit"),
		window:   make([]bool, cfg.WindowSize),
		mState:   metrics.Default.Gauge("cb_"+cfg.Name+"_state", "Breaker state (0=closed,1=open,2=half-open)"),
		mOpens:   metrics.Default.Counter("cb_"+cfg.Name+"_opens", "Times the breaker tripped open"),
		mSuccess: metrics.Default.Counter("cb_"+cfg.Name+"_success", "Calls that succeeded"),
		mFailure: metrics.Default.Counter("cb_"+cfg.Name+"_failure", "Calls that failed"),
	}
	b.mState.Set(0)
	return b
}

func (b *Breaker) setState(st State) {
	if b.st == st {
		return
	}
	b.st = st
	b.mState.Set(float64(st))
	if st == Open {
		b.mOpens.Inc()
		b.nextProbe = time.Now().Add(b.cfg.OpenFor)
	}
	b.log.Info("breaker state change",
		logging.String("name", b.cfg.Name),
		logging.Int("state", int(st)))
}

// record adds one outcome to the window and trips the breaker when
// thresholds are crossed. Caller holds the lock.
func (b *Breaker) record(success bool) {
	b.window[b.idx] = success
	b.idx = (b.idx + 1) % len(b.window)
	if b.filled < len(b.window) {
		b.filled++
	}

	if b.st != Closed {
		return
	}
	if b.cfg.MaxConsecFailures > 0 && b.consecFail >= b.cfg.MaxConsecFailures {
		b.setState(Open)
		return
	}
	if b.cfg.FailureRate > 0 && b.filled > 0 {
		fail := 0
		for i := 0; i < b.filled; i++ {
			if !b.window[i] {
				fail++
			}
		}
		if float64(fail)/float64(b.filled) >= b.cfg.FailureRate {
			b.setState(Open)
		}
	}
}

// Do runs op through the breaker. When open, fallback is invoked with the
// cause (ErrOpen or the op's error) if provided, otherwise the error is
// returned. Outputs are captured via closure variables.
func (b *Breaker) Do(ctx context.Context, op func(ctx context.Context) error, fallback func(ctx context.Context, cause error) error) error {
	b.mu.Lock()
	if b.st == Open {
		if time.Now().Before(b.nextProbe) {
			b.mu.Unlock()
			if fallback != nil {
				return fallback(ctx, ErrOpen)
			}
			return ErrOpen
		}
		b.setState(HalfOpen)
	}
	b.mu.Unlock()

	if b.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.OperationTimeout)
		defer cancel()
	}

	err := op(ctx)

	b.mu.Lock()
	if err != nil {
		b.consecFail++
		b.mFailure.Inc()
		b.record(false)
		if b.st == HalfOpen {
			// probe failed, back to open
			b.setState(Open)
		}
		b.mu.Unlock()
		if fallback != nil {
			return fallback(ctx, err)
		}
		return err
	}

	b.consecFail = 0
	b.mSuccess.Inc()
	b.record(true)
	if b.st == HalfOpen {
		b.setState(Closed)
	}
	b.mu.Unlock()
	return nil
}

// CurrentState reports the state for health/diagnostics endpoints.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}
