package service

import (
	"context"
	"time"

	"github.com/apimeter/backend/internal/domain"
	"github.com/go-playground/validator/v10"
)

// ledgerStore is the slice of the ledger repository the credit service needs.
type ledgerStore interface {
	Append(ctx context.Context, entry *domain.CreditTransaction, allowNegative bool) (*domain.CreditTransaction, error)
	History(ctx context.Context, accountID string, f domain.HistoryFilter) ([]*domain.CreditTransaction, error)
	Replay(ctx context.Context, accountID string) (int64, error)
}

// accountGetter looks up accounts for existence and plan checks.
type accountGetter interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
}

// FeedPublisher receives ledger events for the admin activity feed.
type FeedPublisher interface {
	Publish(event domain.LedgerEvent)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// CreditService records credit movements. It is the only writer to the
// ledger; the configured overage policy decides whether USAGE may drive a
// balance negative.
type CreditService struct {
	ledger   ledgerStore
	accounts accountGetter
	policy   domain.OveragePolicy
	feed     FeedPublisher
	validate *validator.Validate
}

// NewCreditService creates a new CreditService. feed may be nil.
func NewCreditService(ledger ledgerStore, accounts accountGetter, policy domain.OveragePolicy, feed FeedPublisher) *CreditService {
	return &CreditService{
		ledger:   ledger,
		accounts: accounts,
		policy:   policy,
		feed:     feed,
		validate: validator.New(),
	}
}

// Record appends a ledger entry. The returned bool is true when the
// idempotency key had been seen before and the stored entry was returned
// instead of a new debit.
func (s *CreditService) Record(ctx context.Context, accountID string, typ domain.TransactionType, amount int64, reason, actorID string, endpointID *string, idempotencyKey string) (*domain.CreditTransaction, bool, error) {
	if !typ.Valid() {
		return nil, false, domain.ErrBadRequest("unknown transaction type")
	}
	if amount <= 0 {
		return nil, false, domain.ErrInvalidAmount("amount must be a positive integer")
	}
	// Operator-initiated ADD/REMOVE must carry an audit reason.
	if actorID != domain.SystemActor && (typ == domain.TransactionAdd || typ == domain.TransactionRemove) && reason == "" {
		return nil, false, domain.ErrValidation("a reason is required for credit adjustments")
	}

	entry := &domain.CreditTransaction{
		ID:        domain.NewID(),
		AccountID: accountID,
		Type:      typ,
		Amount:    amount,
		Reason:    reason,
		ActorID:   actorID,
		CreatedAt: time.Now().UTC(),
	}
	if endpointID != nil && *endpointID != "" {
		entry.EndpointID = endpointID
	}
	if idempotencyKey != "" {
		entry.IdempotencyKey = &idempotencyKey
	}

	allowNegative := typ == domain.TransactionUsage && s.policy == domain.OverageAllow

	stored, err := s.ledger.Append(ctx, entry, allowNegative)
	if err != nil {
		return nil, false, err
	}
	replayed := stored.ID != entry.ID
	if !replayed && s.feed != nil {
		s.feed.Publish(domain.LedgerEvent{
			AccountID:    stored.AccountID,
			Type:         stored.Type,
			Amount:       stored.Amount,
			BalanceAfter: stored.BalanceAfter,
			Reason:       stored.Reason,
			CreatedAt:    stored.CreatedAt,
		})
	}
	return stored, replayed, nil
}

// AdminAdjust handles operator ADD/REMOVE with a mandatory reason.
func (s *CreditService) AdminAdjust(ctx context.Context, req *domain.AdjustCreditsRequest, typ domain.TransactionType, actorID string) (*domain.CreditTransaction, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if typ != domain.TransactionAdd && typ != domain.TransactionRemove {
		return nil, domain.ErrBadRequest("adjustment type must be ADD or REMOVE")
	}
	tx, _, err := s.Record(ctx, req.AccountID, typ, req.Amount, req.Reason, actorID, nil, "")
	return tx, err
}

// History returns ledger entries for an account, newest first.
func (s *CreditService) History(ctx context.Context, accountID string, f domain.HistoryFilter) ([]*domain.CreditTransaction, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound()
	}

	if f.Limit <= 0 {
		f.Limit = defaultHistoryLimit
	}
	if f.Limit > maxHistoryLimit {
		f.Limit = maxHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.ledger.History(ctx, accountID, f)
}

// Balance returns the account with its materialized credit pair.
func (s *CreditService) Balance(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound()
	}
	return account, nil
}

// Reconcile replays the full ledger and compares it with the materialized
// balance. The two must agree; a mismatch indicates a write outside the
// ledger path.
func (s *CreditService) Reconcile(ctx context.Context, accountID string) (*domain.BalanceReconciliation, error) {
	account, err := s.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	replayed, err := s.ledger.Replay(ctx, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to replay ledger", err)
	}
	return &domain.BalanceReconciliation{
		AccountID:  accountID,
		Cached:     account.CreditsRemaining,
		Replayed:   replayed,
		Consistent: account.CreditsRemaining == replayed,
	}, nil
}
