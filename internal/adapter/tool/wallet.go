package tool

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"walletchat/internal/domain"
)

// WalletBackend abstracts wallet operations so tools stay testable and a real
// chain client could slot in later.
type WalletBackend interface {
	// Snapshot returns the wallet's balances and recent activity.
	Snapshot(ctx context.Context) (*domain.WalletSnapshot, error)
	// Send submits a transfer to the network and returns the pending transaction.
	Send(ctx context.Context, req domain.SendRequest) (*domain.Transaction, error)
	// Swap exchanges amount of fromCurrency into toCurrency at a quoted rate.
	Swap(ctx context.Context, fromCurrency, toCurrency string, amount float64) (*domain.Swap, error)
}

// MockWalletBackend simulates a wallet without touching any chain. Latencies
// approximate network round trips; the rng makes quotes and IDs reproducible
// when seeded.
type MockWalletBackend struct {
	mu          sync.Mutex
	rng         *rand.Rand
	sendLatency time.Duration
	swapLatency time.Duration
	infoLatency time.Duration
}

// NewMockWalletBackend creates a mock wallet. A zero seed derives one from
// the clock.
func NewMockWalletBackend(sendLatency, swapLatency time.Duration, seed int64) *MockWalletBackend {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockWalletBackend{
		rng:         rand.New(rand.NewSource(seed)),
		sendLatency: sendLatency,
		swapLatency: swapLatency,
		infoLatency: 500 * time.Millisecond,
	}
}

func (m *MockWalletBackend) Snapshot(ctx context.Context) (*domain.WalletSnapshot, error) {
	if err := sleepCtx(ctx, m.infoLatency); err != nil {
		return nil, err
	}

	return &domain.WalletSnapshot{
		Balances: map[string]domain.Balance{
			"ETH":  {Amount: 2.45, ValueUSD: 8575.00},
			"USDC": {Amount: 1234.56, ValueUSD: 1234.56},
			"ALGO": {Amount: 500.00, ValueUSD: 150.00},
			"BTC":  {Amount: 0.15, ValueUSD: 6750.00},
		},
		TotalValueUSD: 16709.56,
		RecentTransactions: []domain.Activity{
			{ID: "1", Type: domain.ActivityReceived, Amount: 10, Currency: "ETH", Counterparty: "alice_crypto"},
			{ID: "2", Type: domain.ActivitySent, Amount: 500, Currency: "USDC", Counterparty: "bob_trader"},
		},
	}, nil
}

func (m *MockWalletBackend) Send(ctx context.Context, req domain.SendRequest) (*domain.Transaction, error) {
	if err := sleepCtx(ctx, m.sendLatency); err != nil {
		return nil, err
	}

	return &domain.Transaction{
		ID:        m.newID("tx_"),
		Amount:    req.Amount,
		Currency:  req.Currency,
		Recipient: req.Recipient,
		Status:    domain.TxPending,
		Timestamp: time.Now(),
	}, nil
}

func (m *MockWalletBackend) Swap(ctx context.Context, fromCurrency, toCurrency string, amount float64) (*domain.Swap, error) {
	if err := sleepCtx(ctx, m.swapLatency); err != nil {
		return nil, err
	}

	m.mu.Lock()
	rate := 0.95 + m.rng.Float64()*0.1
	m.mu.Unlock()

	return &domain.Swap{
		ID:           m.newID("swap_"),
		FromCurrency: fromCurrency,
		ToCurrency:   toCurrency,
		FromAmount:   amount,
		ToAmount:     amount * rate,
		ExchangeRate: rate,
		Status:       domain.TxPending,
	}, nil
}

func (m *MockWalletBackend) newID(prefix string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := time.Now()
	return prefix + ulid.MustNew(ulid.Timestamp(t), m.rng).String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ WalletBackend = (*MockWalletBackend)(nil)
