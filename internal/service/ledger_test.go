package service

import (
	"context"
	"sync"
	"testing"

	"github.com/apimeter/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger mimics the repository's append semantics in memory: serialized
// writes, running balance, idempotency-key replay.
type fakeLedger struct {
	mu      sync.Mutex
	entries []*domain.CreditTransaction
	balance int64
}

func (f *fakeLedger) Append(ctx context.Context, entry *domain.CreditTransaction, allowNegative bool) (*domain.CreditTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if entry.IdempotencyKey != nil {
		for _, e := range f.entries {
			if e.AccountID == entry.AccountID && e.IdempotencyKey != nil && *e.IdempotencyKey == *entry.IdempotencyKey {
				return e, nil
			}
		}
	}

	next := f.balance + entry.SignedAmount()
	if next < 0 && !allowNegative {
		return nil, domain.ErrInsufficientBalance("insufficient credits")
	}
	f.balance = next

	stored := *entry
	stored.BalanceAfter = next
	f.entries = append(f.entries, &stored)
	return &stored, nil
}

func (f *fakeLedger) History(ctx context.Context, accountID string, filter domain.HistoryFilter) ([]*domain.CreditTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.CreditTransaction, 0, len(f.entries))
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].AccountID == accountID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeLedger) Replay(ctx context.Context, accountID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var balance int64
	for _, e := range f.entries {
		if e.AccountID == accountID {
			balance += e.SignedAmount()
		}
	}
	return balance, nil
}

type fakeAccounts struct {
	accounts map[string]*domain.Account
}

func (f *fakeAccounts) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return f.accounts[id], nil
}

type capturingFeed struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
}

func (c *capturingFeed) Publish(event domain.LedgerEvent) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func newTestCreditService(policy domain.OveragePolicy, feed FeedPublisher) (*CreditService, *fakeLedger) {
	ledger := &fakeLedger{}
	accounts := &fakeAccounts{accounts: map[string]*domain.Account{
		"acc-1": {ID: "acc-1", IsActive: true},
	}}
	return NewCreditService(ledger, accounts, policy, feed), ledger
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestCreditService(domain.OverageBlock, nil)
	ctx := context.Background()

	_, _, err := svc.Record(ctx, "acc-1", "TRANSFER", 10, "r", domain.SystemActor, nil, "")
	assert.Error(t, err)

	_, _, err = svc.Record(ctx, "acc-1", domain.TransactionAdd, 0, "r", domain.SystemActor, nil, "")
	assert.True(t, domain.IsKind(err, domain.KindInvalidAmount))

	_, _, err = svc.Record(ctx, "acc-1", domain.TransactionUsage, -5, "r", domain.SystemActor, nil, "")
	assert.True(t, domain.IsKind(err, domain.KindInvalidAmount))
}

func TestRecordRequiresReasonForOperatorAdjustments(t *testing.T) {
	svc, _ := newTestCreditService(domain.OverageBlock, nil)
	ctx := context.Background()

	_, _, err := svc.Record(ctx, "acc-1", domain.TransactionAdd, 10, "", "admin-1", nil, "")
	assert.Error(t, err)

	// System entries don't need one.
	_, _, err = svc.Record(ctx, "acc-1", domain.TransactionAdd, 10, "", domain.SystemActor, nil, "")
	assert.NoError(t, err)
}

func TestRecordBlocksOverdraftUnderBlockPolicy(t *testing.T) {
	svc, _ := newTestCreditService(domain.OverageBlock, nil)
	ctx := context.Background()

	_, _, err := svc.Record(ctx, "acc-1", domain.TransactionAdd, 100, "grant", domain.SystemActor, nil, "")
	require.NoError(t, err)

	_, _, err = svc.Record(ctx, "acc-1", domain.TransactionUsage, 150, "big call", domain.SystemActor, nil, "")
	assert.True(t, domain.IsKind(err, domain.KindInsufficientBalance))

	// Balance is untouched by the rejected debit.
	replayed, err := svc.ledger.Replay(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), replayed)
}

func TestRecordAllowsUsageOverdraftUnderAllowPolicy(t *testing.T) {
	svc, _ := newTestCreditService(domain.OverageAllow, nil)
	ctx := context.Background()

	_, _, err := svc.Record(ctx, "acc-1", domain.TransactionAdd, 100, "grant", domain.SystemActor, nil, "")
	require.NoError(t, err)

	tx, _, err := svc.Record(ctx, "acc-1", domain.TransactionUsage, 150, "big call", domain.SystemActor, nil, "")
	require.NoError(t, err)
	assert.Equal(t, int64(-50), tx.BalanceAfter)

	// Operator REMOVE is still blocked below zero even under allow.
	_, _, err = svc.Record(ctx, "acc-1", domain.TransactionRemove, 10, "clawback", "admin-1", nil, "")
	assert.True(t, domain.IsKind(err, domain.KindInsufficientBalance))
}

func TestRecordIdempotentReplay(t *testing.T) {
	feed := &capturingFeed{}
	svc, ledger := newTestCreditService(domain.OverageBlock, feed)
	ctx := context.Background()

	_, _, err := svc.Record(ctx, "acc-1", domain.TransactionAdd, 100, "grant", domain.SystemActor, nil, "")
	require.NoError(t, err)

	first, replayed, err := svc.Record(ctx, "acc-1", domain.TransactionUsage, 10, "call", domain.SystemActor, nil, "retry-key-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := svc.Record(ctx, "acc-1", domain.TransactionUsage, 10, "call", domain.SystemActor, nil, "retry-key-1")
	require.NoError(t, err)
	assert.True(t, replayed, "same key returns the stored entry")
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, ledger.entries, 2, "grant plus one debit, not two")
	assert.Equal(t, int64(90), ledger.balance)

	// The replay is not re-broadcast to the feed.
	assert.Len(t, feed.events, 2)
}

func TestRecordConcurrentDebitsExactlyOneWins(t *testing.T) {
	svc, ledger := newTestCreditService(domain.OverageBlock, nil)
	ctx := context.Background()

	_, _, err := svc.Record(ctx, "acc-1", domain.TransactionAdd, 1, "grant", domain.SystemActor, nil, "")
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Record(ctx, "acc-1", domain.TransactionUsage, 1, "race", domain.SystemActor, nil, "")
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, domain.IsKind(err, domain.KindInsufficientBalance))
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, losses)
	assert.Equal(t, int64(0), ledger.balance)
}

func TestAdminAdjustValidation(t *testing.T) {
	svc, _ := newTestCreditService(domain.OverageBlock, nil)
	ctx := context.Background()

	_, err := svc.AdminAdjust(ctx, &domain.AdjustCreditsRequest{AccountID: "acc-1", Amount: 10, Reason: "x"}, domain.TransactionAdd, "admin-1")
	assert.Error(t, err, "reason below minimum length")

	_, err = svc.AdminAdjust(ctx, &domain.AdjustCreditsRequest{AccountID: "acc-1", Amount: 10, Reason: "promo credit"}, domain.TransactionUsage, "admin-1")
	assert.Error(t, err, "only ADD and REMOVE are operator adjustments")

	tx, err := svc.AdminAdjust(ctx, &domain.AdjustCreditsRequest{AccountID: "acc-1", Amount: 10, Reason: "promo credit"}, domain.TransactionAdd, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", tx.ActorID)
	assert.Equal(t, int64(10), tx.BalanceAfter)
}

func TestHistoryUnknownAccount(t *testing.T) {
	svc, _ := newTestCreditService(domain.OverageBlock, nil)

	_, err := svc.History(context.Background(), "nope", domain.HistoryFilter{})
	assert.True(t, domain.IsKind(err, domain.KindAccountNotFound))
}

func TestReconcileConsistency(t *testing.T) {
	ledger := &fakeLedger{}
	accounts := &fakeAccounts{accounts: map[string]*domain.Account{
		"acc-1": {ID: "acc-1", CreditsRemaining: 90, IsActive: true},
	}}
	svc := NewCreditService(ledger, accounts, domain.OverageBlock, nil)
	ctx := context.Background()

	_, _, err := svc.Record(ctx, "acc-1", domain.TransactionAdd, 100, "grant", domain.SystemActor, nil, "")
	require.NoError(t, err)
	_, _, err = svc.Record(ctx, "acc-1", domain.TransactionUsage, 10, "call", domain.SystemActor, nil, "")
	require.NoError(t, err)

	rec, err := svc.Reconcile(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(90), rec.Replayed)
	assert.True(t, rec.Consistent)

	// A balance written outside the ledger path shows up as a mismatch.
	accounts.accounts["acc-1"].CreditsRemaining = 500
	rec, err = svc.Reconcile(ctx, "acc-1")
	require.NoError(t, err)
	assert.False(t, rec.Consistent)
}
