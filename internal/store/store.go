// Package store defines the persistence contracts for the ledger engine.
//
// The interfaces expose atomic primitives rather than raw reads and writes:
// ApplyMovement commits balance changes and the ledger append as one unit,
// and every status transition is a compare-and-set that either wins or
// reports the conflict. Implementations must uphold these guarantees under
// concurrent callers.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillfold-dev/tillfold/internal/model"
)

// BalanceDelta is one account's balance change within a movement.
type BalanceDelta struct {
	AccountID uuid.UUID
	Delta     decimal.Decimal // negative for debits
}

// AccountStore persists account aggregates.
type AccountStore interface {
	// CreateAccount persists a new account. Fails with ErrDuplicateNumber if
	// the account number is taken.
	CreateAccount(ctx context.Context, acct model.Account) (model.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (model.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	SetPINHash(ctx context.Context, id uuid.UUID, hash string) error

	// ApplyMovement applies every delta and appends the movement as a single
	// atomic unit. If any resulting balance would go negative it fails with
	// ErrInsufficientFunds and leaves both accounts and ledger untouched.
	ApplyMovement(ctx context.Context, mv model.Movement, deltas []BalanceDelta) (model.Movement, error)
}

// LedgerStore reads and annotates the append-only movement history.
type LedgerStore interface {
	GetMovement(ctx context.Context, id uuid.UUID) (model.Movement, error)
	// ListMovements returns movements involving the account, newest first.
	ListMovements(ctx context.Context, accountID uuid.UUID) ([]model.Movement, error)
	// GetMovementByClientRef resolves a deduplication token to the movement it
	// created, or ErrMovementNotFound.
	GetMovementByClientRef(ctx context.Context, ref string) (model.Movement, error)
	// AnnotateMovement sets the free-text note. Metadata only; no atomicity
	// contract with balances.
	AnnotateMovement(ctx context.Context, id uuid.UUID, note string) (model.Movement, error)
}

// RequestStore persists payment requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, r model.PaymentRequest) (model.PaymentRequest, error)
	GetRequest(ctx context.Context, id uuid.UUID) (model.PaymentRequest, error)
	// ListRequestsForAccount returns requests the account sent or received,
	// newest first.
	ListRequestsForAccount(ctx context.Context, accountID uuid.UUID) ([]model.PaymentRequest, error)
	ListRequestsForExpense(ctx context.Context, expenseID uuid.UUID) ([]model.PaymentRequest, error)
	// ResolveRequest transitions pending -> to in one atomic step. A request
	// already out of pending yields ErrRequestResolved.
	ResolveRequest(ctx context.Context, id uuid.UUID, to model.RequestStatus) (model.PaymentRequest, error)
}

// ExpenseStore persists group expenses and their member shares.
type ExpenseStore interface {
	// CreateExpense persists the expense and its spawned payment requests as
	// one atomic unit.
	CreateExpense(ctx context.Context, e model.GroupExpense, requests []model.PaymentRequest) (model.GroupExpense, error)
	GetExpense(ctx context.Context, id uuid.UUID) (model.GroupExpense, error)
	// ListExpensesForAccount returns expenses the account created or belongs
	// to, newest first.
	ListExpensesForAccount(ctx context.Context, accountID uuid.UUID) ([]model.GroupExpense, error)
	// MarkMemberPaid transitions the member pending -> paid in one atomic
	// step and completes the expense when the last share settles. Fails with
	// ErrExpenseNotActive, ErrNotAMember or ErrMemberPaid.
	MarkMemberPaid(ctx context.Context, expenseID, accountID uuid.UUID) (model.GroupExpense, error)
	// SetExpenseStatus transitions from -> to atomically, failing with
	// ErrExpenseNotActive when the current status differs from from.
	SetExpenseStatus(ctx context.Context, id uuid.UUID, from, to model.ExpenseStatus) (model.GroupExpense, error)
}

// Store bundles the four contracts a fully wired engine needs.
type Store interface {
	AccountStore
	LedgerStore
	RequestStore
	ExpenseStore
}
