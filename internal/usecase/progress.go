package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"walletchat/internal/domain"
	"walletchat/internal/infra/config"
)

const txHashLen = 64

// ProgressUpdateFunc observes each state change of a simulated transaction.
// It is called from the simulation goroutine; implementations must be fast
// or hand off to their own machinery.
type ProgressUpdateFunc func(domain.TransactionProgress)

// ProgressSimulator advances confirmed sends from pending to a terminal
// state. Each transaction runs its own goroutine that owns all mutation of
// its record: percent grows by a bounded random increment per tick, and a
// one-shot timer may fail a still-pending transaction with a fixed chance.
// Terminal records are frozen.
type ProgressSimulator struct {
	mu      sync.Mutex
	records map[string]*progressRecord
	rng     *rand.Rand

	cfg    config.SimulatorConfig
	bus    domain.EventBus
	logger *slog.Logger
	wg     sync.WaitGroup
}

type progressRecord struct {
	mu       sync.Mutex
	progress domain.TransactionProgress
	cancel   context.CancelFunc
}

// NewProgressSimulator creates a simulator. A zero cfg.Seed derives one from
// the clock; seeded runs are reproducible for tests. bus may be nil.
func NewProgressSimulator(cfg config.SimulatorConfig, bus domain.EventBus, logger *slog.Logger) *ProgressSimulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 500 * time.Millisecond
	}
	if cfg.FailureDelay <= 0 {
		cfg.FailureDelay = 3 * time.Second
	}
	return &ProgressSimulator{
		records: make(map[string]*progressRecord),
		rng:     rand.New(rand.NewSource(seed)),
		cfg:     cfg,
		bus:     bus,
		logger:  logger,
	}
}

// Start begins simulating the given transaction. The returned snapshot is the
// initial pending state (percent 0, generated hash). Starting a known
// transaction is an error: ErrTransactionTerminal when it already finished,
// ErrTransactionExists while it is still running.
func (ps *ProgressSimulator) Start(ctx context.Context, transactionID string, onUpdate ProgressUpdateFunc) (domain.TransactionProgress, error) {
	ps.mu.Lock()
	if rec, ok := ps.records[transactionID]; ok {
		ps.mu.Unlock()
		rec.mu.Lock()
		terminal := rec.progress.Status.Terminal()
		rec.mu.Unlock()
		if terminal {
			return domain.TransactionProgress{}, domain.NewDomainError("ProgressSimulator.Start", domain.ErrTransactionTerminal, transactionID)
		}
		return domain.TransactionProgress{}, domain.NewDomainError("ProgressSimulator.Start", domain.ErrTransactionExists, transactionID)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rec := &progressRecord{
		progress: domain.TransactionProgress{
			TransactionID: transactionID,
			Percent:       0,
			Status:        domain.TxPending,
			Hash:          ps.randomHashLocked(),
		},
		cancel: cancel,
	}
	ps.records[transactionID] = rec
	ps.mu.Unlock()

	snapshot := rec.progress

	sessionID := domain.SessionIDFromContext(ctx)
	ps.wg.Add(1)
	go ps.run(runCtx, rec, sessionID, onUpdate)

	ps.logger.Debug("transaction simulation started",
		"transaction_id", transactionID,
		"hash", snapshot.Hash,
	)
	return snapshot, nil
}

// run owns all mutation of rec after Start.
func (ps *ProgressSimulator) run(ctx context.Context, rec *progressRecord, sessionID string, onUpdate ProgressUpdateFunc) {
	defer ps.wg.Done()

	ticker := time.NewTicker(ps.cfg.TickInterval)
	defer ticker.Stop()
	failTimer := time.NewTimer(ps.cfg.FailureDelay)
	defer failTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			rec.mu.Lock()
			if rec.progress.Status.Terminal() {
				rec.mu.Unlock()
				return
			}
			rec.progress.Percent += ps.randFloat() * 15
			if rec.progress.Percent >= 100 {
				rec.progress.Percent = 100
				rec.progress.Status = domain.TxCompleted
			}
			snapshot := rec.progress
			rec.mu.Unlock()

			ps.notify(ctx, snapshot, sessionID, onUpdate)
			if snapshot.Status.Terminal() {
				return
			}

		case <-failTimer.C:
			if ps.randFloat() >= ps.cfg.FailureChance {
				continue
			}
			rec.mu.Lock()
			if rec.progress.Status.Terminal() {
				rec.mu.Unlock()
				return
			}
			rec.progress.Status = domain.TxFailed
			snapshot := rec.progress
			rec.mu.Unlock()

			ps.logger.Debug("transaction simulation failed",
				"transaction_id", snapshot.TransactionID,
			)
			ps.notify(ctx, snapshot, sessionID, onUpdate)
			return
		}
	}
}

func (ps *ProgressSimulator) notify(ctx context.Context, snapshot domain.TransactionProgress, sessionID string, onUpdate ProgressUpdateFunc) {
	if onUpdate != nil {
		onUpdate(snapshot)
	}
	if ps.bus != nil {
		payload, _ := json.Marshal(snapshot)
		ps.bus.Publish(ctx, domain.Event{
			Type:      domain.EventTransactionProgress,
			Timestamp: time.Now(),
			SessionID: sessionID,
			Payload:   payload,
		})
	}
}

// Get returns the current state of a simulated transaction.
func (ps *ProgressSimulator) Get(transactionID string) (domain.TransactionProgress, error) {
	ps.mu.Lock()
	rec, ok := ps.records[transactionID]
	ps.mu.Unlock()
	if !ok {
		return domain.TransactionProgress{}, domain.NewDomainError("ProgressSimulator.Get", domain.ErrNotFound, transactionID)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.progress, nil
}

// Stop cancels all running simulations and waits for their goroutines.
func (ps *ProgressSimulator) Stop() {
	ps.mu.Lock()
	for _, rec := range ps.records {
		rec.cancel()
	}
	ps.mu.Unlock()
	ps.wg.Wait()
}

func (ps *ProgressSimulator) randFloat() float64 {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.rng.Float64()
}

// randomHashLocked generates a 0x-prefixed mock transaction hash.
// Caller must hold ps.mu.
func (ps *ProgressSimulator) randomHashLocked() string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 2, 2+txHashLen)
	buf[0], buf[1] = '0', 'x'
	for i := 0; i < txHashLen; i++ {
		buf = append(buf, hexDigits[ps.rng.Intn(len(hexDigits))])
	}
	return string(buf)
}
