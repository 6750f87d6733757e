package verification

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"collegestar/notes-portal/notes-portal-backend/pkg/workflows"
)

// Config controls the verification window.
type Config struct {
	Interval time.Duration `json:"interval"`
	Timeout  time.Duration `json:"timeout"`
	// RequestTimeout bounds a single profile fetch.
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultConfig polls every 2s for up to 20s.
func DefaultConfig() Config {
	return Config{
		Interval:       2 * time.Second,
		Timeout:        20 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// Option customizes a Poller.
type Option func(*Poller)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) { p.logger = logger }
}

// WithListener registers fn to receive every status change. fn runs without
// the poller's lock held and may call back into the poller.
func WithListener(fn func(Session)) Option {
	return func(p *Poller) { p.listeners = append(p.listeners, fn) }
}

// Poller checks whether the current user's donation has been acknowledged.
type Poller struct {
	identity  IdentityStore
	flags     FlagStore
	scheduler Scheduler
	config    Config
	machine   *workflows.StateMachine
	logger    *zap.Logger
	listeners []func(Session)

	mu      sync.Mutex
	session Session
	// generation increments on every Start so late poll results from an
	// older session are discarded.
	generation uint64
	interval   Timer
	timeout    Timer
	done       chan struct{}
}

func NewPoller(identity IdentityStore, flags FlagStore, scheduler Scheduler, config Config, opts ...Option) *Poller {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}

	p := &Poller{
		identity:  identity,
		flags:     flags,
		scheduler: scheduler,
		config:    config,
		machine:   newStatusMachine(),
		logger:    zap.NewNop(),
		session: Session{
			Status:   StatusIdle,
			Interval: config.Interval,
			Timeout:  config.Timeout,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins a new verification session and returns the status it settled
// in synchronously: error, verified, or pending.
func (p *Poller) Start(ctx context.Context) Status {
	user, err := p.identity.CurrentUser(ctx)

	p.mu.Lock()
	p.cancelTimersLocked()
	p.generation++
	p.closeDoneLocked()
	p.done = make(chan struct{})
	gen := p.generation

	var events []Session
	if err != nil || user == nil || user.ID == "" {
		message := ErrNotAuthenticated.Error()
		if err != nil && !errors.Is(err, ErrNotAuthenticated) {
			message = err.Error()
		}
		p.logger.Warn("Donation verification cannot start", zap.String("reason", message))
		events = p.transitionLocked(StatusError, message, events)
		p.closeDoneLocked()
		p.mu.Unlock()
		p.emit(events)
		return StatusError
	}

	p.session.StartedAt = p.scheduler.Now()
	events = p.transitionLocked(StatusPending, "", events)

	if p.localFlagSet(user.ID) {
		p.logger.Info("Donor flag already set locally", zap.String("user_id", user.ID))
		events = p.transitionLocked(StatusVerified, "", events)
		p.closeDoneLocked()
		p.mu.Unlock()
		p.emit(events)
		return StatusVerified
	}

	userID := user.ID
	p.interval = p.scheduler.Every(p.config.Interval, func() { p.check(gen, userID) })
	p.timeout = p.scheduler.After(p.config.Timeout, func() { p.expire(gen) })
	p.logger.Info("Donation verification started",
		zap.String("user_id", userID),
		zap.Duration("interval", p.config.Interval),
		zap.Duration("timeout", p.config.Timeout))
	p.mu.Unlock()

	p.emit(events)
	return StatusPending
}

// Stop cancels any pending timers and discards the result of a poll that is
// still in flight. The current status is left untouched.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.cancelTimersLocked()
	p.generation++
	p.closeDoneLocked()
	p.mu.Unlock()
}

// Status returns the current status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.Status
}

// Snapshot returns a copy of the current session.
func (p *Poller) Snapshot() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// Wait blocks until the current session ends, either by reaching a terminal
// status or by Stop, and returns the status at that point.
func (p *Poller) Wait(ctx context.Context) (Status, error) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return p.Status(), nil
	}
	select {
	case <-done:
		return p.Status(), nil
	case <-ctx.Done():
		return p.Status(), ctx.Err()
	}
}

func (p *Poller) check(gen uint64, userID string) {
	if !p.stillPending(gen) {
		return
	}

	verified := p.localFlagSet(userID)
	if !verified {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.RequestTimeout)
		profile, err := p.identity.FetchProfile(ctx, userID)
		cancel()
		if err != nil {
			// A failed poll must not end the window; the next tick retries.
			p.logger.Debug("Donor poll failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		verified = profile != nil && profile.DonorVerified
	}
	if !verified {
		return
	}

	p.mu.Lock()
	if p.generation != gen || p.session.Status != StatusPending {
		p.mu.Unlock()
		return
	}
	p.cancelTimersLocked()
	events := p.transitionLocked(StatusVerified, "", nil)
	p.closeDoneLocked()
	p.mu.Unlock()

	p.logger.Info("Donation verified", zap.String("user_id", userID))
	p.emit(events)
}

func (p *Poller) expire(gen uint64) {
	p.mu.Lock()
	if p.generation != gen || p.session.Status != StatusPending {
		p.mu.Unlock()
		return
	}
	p.cancelTimersLocked()
	events := p.transitionLocked(StatusTimeout, "", nil)
	p.closeDoneLocked()
	p.mu.Unlock()

	p.logger.Info("Donation verification timed out", zap.Duration("timeout", p.config.Timeout))
	p.emit(events)
}

func (p *Poller) stillPending(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation == gen && p.session.Status == StatusPending
}

func (p *Poller) localFlagSet(userID string) bool {
	if p.flags == nil {
		return false
	}
	v, err := p.flags.Get(DonorFlagKey(userID))
	if err != nil {
		p.logger.Debug("Reading local donor flag failed", zap.Error(err))
		return false
	}
	return v == "true"
}

func (p *Poller) transitionLocked(to Status, message string, events []Session) []Session {
	if err := p.machine.Validate(string(p.session.Status), string(to)); err != nil {
		p.logger.Error("Rejected verification transition",
			zap.Error(err),
			zap.Strings("allowed", p.machine.GetAllowedTransitions(string(p.session.Status))))
		return events
	}
	p.session.Status = to
	p.session.ErrorMessage = message
	return append(events, p.session)
}

func (p *Poller) cancelTimersLocked() {
	if p.interval != nil {
		p.interval.Stop()
		p.interval = nil
	}
	if p.timeout != nil {
		p.timeout.Stop()
		p.timeout = nil
	}
}

func (p *Poller) closeDoneLocked() {
	if p.done == nil {
		return
	}
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

func (p *Poller) emit(events []Session) {
	for _, s := range events {
		for _, fn := range p.listeners {
			fn(s)
		}
	}
}
