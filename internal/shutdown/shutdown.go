// Package shutdown runs registered cleanup functions once, when a signal
// arrives or shutdown is triggered in code.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// ShutdownFunc is a function that will be called during shutdown
type ShutdownFunc func(ctx context.Context) error

// Config holds configuration for the shutdown handler
type Config struct {
	// Timeout is the maximum time to wait for shutdown completion
	Timeout time.Duration

	// Signals is the list of OS signals to listen for
	Signals []os.Signal

	// OnShutdownComplete is called when shutdown completes
	OnShutdownComplete func(err error)

	// Logger is used for shutdown logging (default: discard)
	Logger *zerolog.Logger
}

// DefaultConfig returns the default shutdown configuration
func DefaultConfig() Config {
	return Config{
		Timeout: 5 * time.Second,
		Signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// Handler manages graceful shutdown
type Handler struct {
	config       Config
	log          zerolog.Logger
	funcs        []namedShutdownFunc
	mu           sync.Mutex
	shutdownChan chan os.Signal
	doneChan     chan struct{}
	once         sync.Once
	started      bool
}

// namedShutdownFunc is a shutdown function with a name for logging
type namedShutdownFunc struct {
	name string
	fn   ShutdownFunc
}

// NewHandler creates a new shutdown handler
func NewHandler(config Config) *Handler {
	defaults := DefaultConfig()
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Signals == nil {
		config.Signals = defaults.Signals
	}
	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Handler{
		config:       config,
		log:          log,
		shutdownChan: make(chan os.Signal, 1),
		doneChan:     make(chan struct{}),
	}
}

// Register adds a shutdown function to be called during shutdown
// Functions are called in LIFO order (last registered, first called)
func (h *Handler) Register(name string, fn ShutdownFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.funcs = append(h.funcs, namedShutdownFunc{name: name, fn: fn})
}

// RegisterCancel registers a context cancel function.
func (h *Handler) RegisterCancel(name string, cancel context.CancelFunc) {
	h.Register(name, func(ctx context.Context) error {
		cancel()
		return nil
	})
}

// Start begins listening for shutdown signals. It blocks until a signal
// arrives or Trigger is called, then runs the shutdown functions.
// This method should be called in a goroutine
func (h *Handler) Start() {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	signal.Notify(h.shutdownChan, h.config.Signals...)
	defer signal.Stop(h.shutdownChan)

	select {
	case sig := <-h.shutdownChan:
		h.log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case <-h.doneChan:
		return
	}
	h.performShutdown()
}

// Wait blocks until shutdown is complete
func (h *Handler) Wait() {
	<-h.doneChan
}

// Done is closed when shutdown has completed.
func (h *Handler) Done() <-chan struct{} {
	return h.doneChan
}

// Trigger initiates shutdown programmatically. Calls after the first are
// ignored.
func (h *Handler) Trigger() {
	go h.performShutdown()
}

// performShutdown executes all registered shutdown functions
func (h *Handler) performShutdown() {
	h.once.Do(h.shutdown)
}

func (h *Handler) shutdown() {
	defer close(h.doneChan)

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.mu.Lock()
	funcs := make([]namedShutdownFunc, len(h.funcs))
	copy(funcs, h.funcs)
	h.mu.Unlock()

	var shutdownErr error
	for i := len(funcs) - 1; i >= 0; i-- {
		f := funcs[i]
		start := time.Now()
		if err := f.fn(ctx); err != nil {
			h.log.Error().Err(err).Str("name", f.name).Msg("Shutdown step failed")
			if shutdownErr == nil {
				shutdownErr = err
			}
			continue
		}
		h.log.Debug().Str("name", f.name).Dur("took", time.Since(start)).Msg("Shut down")
	}

	if ctx.Err() == context.DeadlineExceeded {
		h.log.Warn().Dur("timeout", h.config.Timeout).Msg("Shutdown timeout exceeded")
		if shutdownErr == nil {
			shutdownErr = ctx.Err()
		}
	}

	if h.config.OnShutdownComplete != nil {
		h.config.OnShutdownComplete(shutdownErr)
	}
}
