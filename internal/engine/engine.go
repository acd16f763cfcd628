// Package engine is the ledger and settlement core: it is the only component
// that mutates balances, and every mutation pairs with exactly one movement
// record committed in the same atomic unit.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillfold-dev/tillfold/internal/id"
	"github.com/tillfold-dev/tillfold/internal/model"
	"github.com/tillfold-dev/tillfold/internal/pin"
	"github.com/tillfold-dev/tillfold/internal/store"
)

// Policy holds the per-kind ceilings. Transfers carry no engine-imposed limit.
type Policy struct {
	DepositLimit  decimal.Decimal
	WithdrawLimit decimal.Decimal
}

// DefaultPolicy mirrors the stock configuration.
func DefaultPolicy() Policy {
	return Policy{
		DepositLimit:  decimal.NewFromInt(100000),
		WithdrawLimit: decimal.NewFromInt(50000),
	}
}

// Storage is the slice of the store the engine needs.
type Storage interface {
	store.AccountStore
	store.LedgerStore
}

// Engine validates, authorizes, and applies movements.
type Engine struct {
	store  Storage
	gate   *pin.Gate
	policy Policy
	locks  *accountLocks
	log    *slog.Logger
}

// New creates an Engine. A nil logger disables logging.
func New(storage Storage, gate *pin.Gate, policy Policy, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		store:  storage,
		gate:   gate,
		policy: policy,
		locks:  newAccountLocks(),
		log:    log,
	}
}

// MovementResult is the caller-visible outcome of a completed movement.
type MovementResult struct {
	Movement   model.Movement
	NewBalance decimal.Decimal
}

// RegisterParams describe a new account holder.
type RegisterParams struct {
	FirstName string
	LastName  string
	Email     string
}

// Register creates an account with a fresh account number and zero balance.
func (e *Engine) Register(ctx context.Context, p RegisterParams) (model.Account, error) {
	// Retry on number collision; the space is small enough to collide.
	for attempt := 0; attempt < 5; attempt++ {
		number, err := id.NewAccountNumber()
		if err != nil {
			return model.Account{}, err
		}
		acct, err := e.store.CreateAccount(ctx, model.Account{
			Number:    number,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Email:     p.Email,
			Balance:   decimal.Zero,
		})
		if err == model.ErrDuplicateNumber {
			continue
		}
		if err != nil {
			return model.Account{}, err
		}
		e.log.Info("account registered", "account", acct.ID, "number", acct.Number)
		return acct, nil
	}
	return model.Account{}, fmt.Errorf("could not allocate a unique account number")
}

// GetBalance returns the current balance. Reads do not block writers.
func (e *Engine) GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.Balance, nil
}

// Account returns the full account aggregate.
func (e *Engine) Account(ctx context.Context, accountID uuid.UUID) (model.Account, error) {
	return e.store.GetAccount(ctx, accountID)
}

// LookupByNumber resolves an account number to its public identity.
func (e *Engine) LookupByNumber(ctx context.Context, number string) (model.PublicIdentity, error) {
	acct, err := e.store.GetAccountByNumber(ctx, number)
	if err != nil {
		return model.PublicIdentity{}, err
	}
	return acct.Public(), nil
}

// DepositParams describe a deposit or withdrawal.
type DepositParams struct {
	AccountID uuid.UUID
	Amount    decimal.Decimal
	PIN       string
	ClientRef string // optional deduplication token
}

// Deposit credits the account and records one deposit movement.
func (e *Engine) Deposit(ctx context.Context, p DepositParams) (MovementResult, error) {
	return e.applySameAccount(ctx, model.KindDeposit, p)
}

// Withdraw debits the account and records one withdraw movement.
func (e *Engine) Withdraw(ctx context.Context, p DepositParams) (MovementResult, error) {
	return e.applySameAccount(ctx, model.KindWithdraw, p)
}

func (e *Engine) applySameAccount(ctx context.Context, kind model.MovementKind, p DepositParams) (MovementResult, error) {
	if err := validAmount(p.Amount); err != nil {
		return MovementResult{}, err
	}
	limit := e.policy.DepositLimit
	if kind == model.KindWithdraw {
		limit = e.policy.WithdrawLimit
	}
	if p.Amount.GreaterThan(limit) {
		return MovementResult{}, model.ErrLimitExceeded
	}

	if hit, ok, err := e.dedup(ctx, p.ClientRef, p.AccountID); err != nil || ok {
		return hit, err
	}

	if err := e.gate.Verify(ctx, p.AccountID, p.PIN); err != nil {
		return MovementResult{}, err
	}

	unlock := e.locks.acquire(p.AccountID)
	defer unlock()

	// Re-check the dedup token now that the account is serialized.
	if hit, ok, err := e.dedup(ctx, p.ClientRef, p.AccountID); err != nil || ok {
		return hit, err
	}

	delta := p.Amount
	if kind == model.KindWithdraw {
		acct, err := e.store.GetAccount(ctx, p.AccountID)
		if err != nil {
			return MovementResult{}, err
		}
		if acct.Balance.LessThan(p.Amount) {
			return MovementResult{}, model.ErrInsufficientFunds
		}
		delta = p.Amount.Neg()
	}

	mv, err := e.store.ApplyMovement(ctx, model.Movement{
		From:      p.AccountID,
		To:        p.AccountID,
		Amount:    p.Amount,
		Kind:      kind,
		Status:    model.MovementCompleted,
		Category:  string(kind),
		ClientRef: p.ClientRef,
	}, []store.BalanceDelta{{AccountID: p.AccountID, Delta: delta}})
	if err != nil {
		return MovementResult{}, err
	}

	balance, err := e.GetBalance(ctx, p.AccountID)
	if err != nil {
		return MovementResult{}, err
	}
	e.log.Info("movement completed",
		"movement", mv.ID, "kind", kind, "account", p.AccountID, "amount", p.Amount)
	return MovementResult{Movement: mv, NewBalance: balance}, nil
}

// TransferParams describe a transfer between two distinct accounts.
type TransferParams struct {
	From      uuid.UUID
	To        uuid.UUID
	Amount    decimal.Decimal
	PIN       string
	Note      string
	Category  string
	ClientRef string
	RequestID *uuid.UUID
	ExpenseID *uuid.UUID
}

// Transfer debits From and credits To in one atomic unit, recording exactly
// one transfer movement. The PIN authorizes the debited account.
func (e *Engine) Transfer(ctx context.Context, p TransferParams) (MovementResult, error) {
	if err := validAmount(p.Amount); err != nil {
		return MovementResult{}, err
	}
	if p.From == p.To {
		return MovementResult{}, model.ErrSelfTransfer
	}
	if _, err := e.store.GetAccount(ctx, p.To); err != nil {
		return MovementResult{}, err
	}

	if hit, ok, err := e.dedup(ctx, p.ClientRef, p.From); err != nil || ok {
		return hit, err
	}

	if err := e.gate.Verify(ctx, p.From, p.PIN); err != nil {
		return MovementResult{}, err
	}

	unlock := e.locks.acquire(p.From, p.To)
	defer unlock()

	if hit, ok, err := e.dedup(ctx, p.ClientRef, p.From); err != nil || ok {
		return hit, err
	}

	from, err := e.store.GetAccount(ctx, p.From)
	if err != nil {
		return MovementResult{}, err
	}
	if from.Balance.LessThan(p.Amount) {
		return MovementResult{}, model.ErrInsufficientFunds
	}

	category := p.Category
	if category == "" {
		category = string(model.KindTransfer)
	}
	mv, err := e.store.ApplyMovement(ctx, model.Movement{
		From:      p.From,
		To:        p.To,
		Amount:    p.Amount,
		Kind:      model.KindTransfer,
		Status:    model.MovementCompleted,
		Note:      p.Note,
		Category:  category,
		RequestID: p.RequestID,
		ExpenseID: p.ExpenseID,
		ClientRef: p.ClientRef,
	}, []store.BalanceDelta{
		{AccountID: p.From, Delta: p.Amount.Neg()},
		{AccountID: p.To, Delta: p.Amount},
	})
	if err != nil {
		return MovementResult{}, err
	}

	balance, err := e.GetBalance(ctx, p.From)
	if err != nil {
		return MovementResult{}, err
	}
	e.log.Info("movement completed",
		"movement", mv.ID, "kind", model.KindTransfer,
		"from", p.From, "to", p.To, "amount", p.Amount)
	return MovementResult{Movement: mv, NewBalance: balance}, nil
}

// ListMovements returns the account's movement history, newest first.
func (e *Engine) ListMovements(ctx context.Context, accountID uuid.UUID) ([]model.Movement, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.store.ListMovements(ctx, accountID)
}

// Annotate attaches a note to a movement. Metadata only; the acting account
// must be a party to the movement.
func (e *Engine) Annotate(ctx context.Context, movementID, acting uuid.UUID, note string) (model.Movement, error) {
	mv, err := e.store.GetMovement(ctx, movementID)
	if err != nil {
		return model.Movement{}, err
	}
	if !mv.Involves(acting) {
		return model.Movement{}, model.ErrNotAuthorized
	}
	return e.store.AnnotateMovement(ctx, movementID, note)
}

// dedup resolves a client reference to a previously applied movement. The
// second return reports a hit: the retried submission is not re-applied.
func (e *Engine) dedup(ctx context.Context, ref string, visible uuid.UUID) (MovementResult, bool, error) {
	if ref == "" {
		return MovementResult{}, false, nil
	}
	mv, err := e.store.GetMovementByClientRef(ctx, ref)
	if err == model.ErrMovementNotFound {
		return MovementResult{}, false, nil
	}
	if err != nil {
		return MovementResult{}, false, err
	}

	balance, err := e.GetBalance(ctx, visible)
	if err != nil {
		return MovementResult{}, false, err
	}
	e.log.Info("duplicate submission detected", "client_ref", ref, "movement", mv.ID)
	return MovementResult{Movement: mv, NewBalance: balance}, true, nil
}

// validAmount accepts positive amounts with at most two decimal places.
func validAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return model.ErrInvalidAmount
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return model.ErrInvalidAmount
	}
	return nil
}
