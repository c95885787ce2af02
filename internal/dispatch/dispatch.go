package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/model"
)

// Alert is one fired trigger handed to an agent for execution. Previous is
// nil when the firing snapshot was the first of the process.
type Alert struct {
	Rule     string
	Category model.TriggerCategory
	AssetID  string
	Message  string
	Snapshot model.Snapshot
	Previous *model.Snapshot
	FiredAt  time.Time
}

// Agent executes an alert. Implementations are external actors (risk
// reducers, rebalancers, analysis bots) and may take a long time.
type Agent interface {
	Name() string
	Invoke(ctx context.Context, alert Alert) error
}

// Coordinator is the system-wide execution gate. At most one agent execution
// runs at a time; a dispatch while the gate is held is dropped, not queued
// behind the running one indefinitely.
type Coordinator struct {
	mu      sync.Mutex
	running bool

	queue chan Alert
	agent Agent
	log   zerolog.Logger
}

// NewCoordinator creates a coordinator delivering alerts to the given agent.
func NewCoordinator(agent Agent, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		queue: make(chan Alert, 1),
		agent: agent,
		log:   log.With().Str("component", "dispatch").Logger(),
	}
}

// TryStart claims the execution gate. Returns false when another execution
// is already in flight.
func (c *Coordinator) TryStart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}
	c.running = true
	return true
}

// Finish releases the execution gate. Safe to call when the gate is not held.
func (c *Coordinator) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

// Busy reports whether an execution currently holds the gate.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Dispatch claims the gate and enqueues the alert for the worker. Returns
// ErrDispatcherSaturate when the gate is held; the caller logs and moves on,
// the trigger cooldown already fired.
func (c *Coordinator) Dispatch(alert Alert) error {
	if !c.TryStart() {
		return apperrors.ErrDispatcherSaturate
	}

	select {
	case c.queue <- alert:
		return nil
	default:
		// Gate claimed but queue full. Cannot happen with a queue of one,
		// but release the gate rather than deadlock if it ever does.
		c.Finish()
		return apperrors.ErrDispatcherSaturate
	}
}

// Run delivers queued alerts to the agent until the context is cancelled.
// The gate is released when the agent returns, whatever the outcome.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case alert := <-c.queue:
			c.execute(ctx, alert)
		}
	}
}

func (c *Coordinator) execute(ctx context.Context, alert Alert) {
	defer c.Finish()

	start := time.Now()
	c.log.Info().
		Str("rule", alert.Rule).
		Str("category", string(alert.Category)).
		Str("agent", c.agent.Name()).
		Msg("dispatching alert")

	if err := c.agent.Invoke(ctx, alert); err != nil {
		c.log.Error().
			Err(err).
			Str("rule", alert.Rule).
			Dur("elapsed", time.Since(start)).
			Msg("agent execution failed")
		return
	}

	c.log.Info().
		Str("rule", alert.Rule).
		Dur("elapsed", time.Since(start)).
		Msg("agent execution finished")
}
