package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/watchtowerhq/watchtower/internal/config"
	"github.com/watchtowerhq/watchtower/internal/dispatch"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/pkg/logger"
)

// DiscardLogger returns a logger that drops everything, for quiet tests.
func DiscardLogger() zerolog.Logger {
	return logger.Discard()
}

// TestAccount returns the account configuration used across tests.
func TestAccount() config.AccountConfig {
	return config.AccountConfig{
		TrackedAddress: "tracked-wallet",
		PrimaryAssetID: "primary-coin",
		PrimarySymbol:  "PRI",
		StakedAssetID:  "staked-coin",
		CashAssetID:    "cash-coin",
	}
}

// TestSamplerConfig returns a sampler configuration with short intervals.
func TestSamplerConfig() config.SamplerConfig {
	return config.SamplerConfig{
		BaseInterval:      10 * time.Millisecond,
		ThrottledInterval: 50 * time.Millisecond,
		InitGrace:         0,
		ShutdownGrace:     time.Second,
		MirrorTimeout:     time.Second,
		CacheSize:         16,
		MaxPositionPrice:  100,
		MaxPositionValue:  1_000_000,
	}
}

// TestTriggerConfig returns the default trigger thresholds used in tests.
func TestTriggerConfig() config.TriggerConfig {
	return config.TriggerConfig{
		MinimumBalanceUSD:    50,
		DrawdownLimitPct:     -30,
		MaxLossPct:           10,
		ConsecutiveLossLimit: 6,
		PositionSizeTrigger:  0.15,
		GainMultipleTrigger:  3.0,
		DustThresholdUSD:     1.0,
		PrimaryMinPct:        0.10,
		PrimaryMaxPct:        0.20,
		CashMinPct:           0.20,
		CashEmergencyPct:     0.05,
		RebalanceTolerance:   0.8,
		RiskCooldown:         5 * time.Minute,
		AnalysisCooldown:     15 * time.Minute,
		MaintenanceCooldown:  10 * time.Minute,
	}
}

// FakeOracle is a PriceOracle backed by a mutable in-memory price table.
type FakeOracle struct {
	mu        sync.Mutex
	Prices    map[string]float64
	Err       error
	throttled bool
}

// NewFakeOracle creates a FakeOracle with the given prices.
func NewFakeOracle(prices map[string]float64) *FakeOracle {
	if prices == nil {
		prices = map[string]float64{}
	}
	return &FakeOracle{Prices: prices}
}

func (o *FakeOracle) GetPrices(_ context.Context, assetIDs []string) (map[string]float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return nil, o.Err
	}

	result := map[string]float64{}
	for _, id := range assetIDs {
		if price, ok := o.Prices[id]; ok {
			result[id] = price
		}
	}
	return result, nil
}

func (o *FakeOracle) Throttled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.throttled
}

// SetThrottled flips the back-pressure signal.
func (o *FakeOracle) SetThrottled(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.throttled = v
}

// SetPrice updates one asset's price.
func (o *FakeOracle) SetPrice(assetID string, price float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Prices[assetID] = price
}

// RemovePrice deletes one asset's price so lookups miss.
func (o *FakeOracle) RemovePrice(assetID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.Prices, assetID)
}

// FakeBalanceSource is a balance.Source returning a fixed state.
type FakeBalanceSource struct {
	mu       sync.Mutex
	Balances model.Balances
	Err      error
}

// NewFakeBalanceSource creates a FakeBalanceSource with the given state.
func NewFakeBalanceSource(balances model.Balances) *FakeBalanceSource {
	if balances.Positions == nil {
		balances.Positions = map[string]float64{}
	}
	return &FakeBalanceSource{Balances: balances}
}

func (s *FakeBalanceSource) GetBalances(_ context.Context) (model.Balances, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.Balances{}, s.Err
	}
	return s.Balances, nil
}

// SetBalances replaces the returned state.
func (s *FakeBalanceSource) SetBalances(balances model.Balances) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Balances = balances
}

// FakeRemoteStore records uploaded snapshots in memory.
type FakeRemoteStore struct {
	mu   sync.Mutex
	Puts []model.Snapshot
	Err  error
}

func (s *FakeRemoteStore) PutSnapshot(_ context.Context, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Puts = append(s.Puts, snap)
	return nil
}

// PutCount returns how many snapshots were uploaded.
func (s *FakeRemoteStore) PutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Puts)
}

// FakeAgent records invoked alerts. When Block is set, Invoke waits on it so
// tests can hold the execution gate open.
type FakeAgent struct {
	mu      sync.Mutex
	Alerts  []dispatch.Alert
	Block   chan struct{}
	Invoked chan struct{}
}

// NewFakeAgent creates a FakeAgent with a buffered invocation signal.
func NewFakeAgent() *FakeAgent {
	return &FakeAgent{Invoked: make(chan struct{}, 16)}
}

func (a *FakeAgent) Name() string { return "fake" }

func (a *FakeAgent) Invoke(ctx context.Context, alert dispatch.Alert) error {
	a.mu.Lock()
	a.Alerts = append(a.Alerts, alert)
	a.mu.Unlock()

	select {
	case a.Invoked <- struct{}{}:
	default:
	}

	if a.Block != nil {
		select {
		case <-a.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// AlertCount returns how many alerts were delivered.
func (a *FakeAgent) AlertCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Alerts)
}

// LastAlert returns the most recent alert and whether one exists.
func (a *FakeAgent) LastAlert() (dispatch.Alert, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.Alerts) == 0 {
		return dispatch.Alert{}, false
	}
	return a.Alerts[len(a.Alerts)-1], true
}
