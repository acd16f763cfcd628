package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a registered party that can hold a balance and move money.
// The balance is only ever mutated through the transfer engine.
type Account struct {
	ID        uuid.UUID
	Number    string // externally visible, "ACC" + 6 digits
	FirstName string
	LastName  string
	Email     string
	Balance   decimal.Decimal
	PINHash   string // bcrypt hash, empty until the PIN is first set
	CreatedAt time.Time
}

// Name returns the account holder's display name.
func (a Account) Name() string {
	if a.FirstName == "" {
		return a.LastName
	}
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// PublicIdentity is the subset of an account safe to show other parties.
type PublicIdentity struct {
	ID     uuid.UUID
	Number string
	Name   string
}

// Public returns the account's shareable identity.
func (a Account) Public() PublicIdentity {
	return PublicIdentity{ID: a.ID, Number: a.Number, Name: a.Name()}
}

// MovementKind classifies a ledger movement.
type MovementKind string

const (
	KindDeposit  MovementKind = "deposit"
	KindWithdraw MovementKind = "withdraw"
	KindTransfer MovementKind = "transfer"
)

// Valid reports whether k is a known movement kind.
func (k MovementKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdraw, KindTransfer:
		return true
	}
	return false
}

// MovementStatus is the lifecycle state of a movement. The engine only ever
// records completed movements; it rejects before creating anything else.
type MovementStatus string

const (
	MovementPending   MovementStatus = "pending"
	MovementCompleted MovementStatus = "completed"
	MovementFailed    MovementStatus = "failed"
)

// Movement is one immutable ledger entry. Deposit and withdraw use the same
// account on both sides with a one-directional balance effect. Only the note
// may change after creation.
type Movement struct {
	ID        uuid.UUID
	From      uuid.UUID
	To        uuid.UUID
	Amount    decimal.Decimal
	Kind      MovementKind
	Status    MovementStatus
	Note      string
	Category  string
	RequestID *uuid.UUID // originating payment request, if any
	ExpenseID *uuid.UUID // originating group expense, if any
	ClientRef string     // caller-supplied deduplication token
	CreatedAt time.Time
}

// Involves reports whether the account appears on either side of the movement.
func (m Movement) Involves(accountID uuid.UUID) bool {
	return m.From == accountID || m.To == accountID
}

// RequestStatus is the state of a payment request. pending is the only
// non-terminal state.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

// CanTransition reports whether a request may move from s to next. The only
// legal edges are pending -> accepted and pending -> declined.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	return s == RequestPending && (next == RequestAccepted || next == RequestDeclined)
}

// Terminal reports whether the status permits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == RequestAccepted || s == RequestDeclined
}

// PaymentRequest asks the receiver to send amount to the sender. Resolved
// exactly once.
type PaymentRequest struct {
	ID        uuid.UUID
	Sender    uuid.UUID // the party asking for money
	Receiver  uuid.UUID // the party being asked to pay
	Amount    decimal.Decimal
	Status    RequestStatus
	Note      string
	ExpenseID *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SplitMethod is the group expense division policy.
type SplitMethod string

const (
	SplitEqual  SplitMethod = "equal"
	SplitCustom SplitMethod = "custom"
)

// Valid reports whether m is a known split method.
func (m SplitMethod) Valid() bool {
	return m == SplitEqual || m == SplitCustom
}

// ExpenseStatus is the overall state of a group expense.
type ExpenseStatus string

const (
	ExpenseActive    ExpenseStatus = "active"
	ExpenseCompleted ExpenseStatus = "completed"
	ExpenseCancelled ExpenseStatus = "cancelled"
)

// CanTransition reports whether an expense may move from s to next.
func (s ExpenseStatus) CanTransition(next ExpenseStatus) bool {
	return s == ExpenseActive && (next == ExpenseCompleted || next == ExpenseCancelled)
}

// MemberStatus is a member's settlement state within a group expense.
type MemberStatus string

const (
	MemberPending MemberStatus = "pending"
	MemberPaid    MemberStatus = "paid"
)

// Member is one participant's share of a group expense.
type Member struct {
	AccountID uuid.UUID
	Owed      decimal.Decimal
	Status    MemberStatus
}

// ExpenseCategory values accepted for group expenses.
var ExpenseCategories = []string{"food", "travel", "shopping", "utilities", "entertainment", "other"}

// ValidExpenseCategory reports whether c is an accepted category.
func ValidExpenseCategory(c string) bool {
	for _, known := range ExpenseCategories {
		if c == known {
			return true
		}
	}
	return false
}

// GroupExpense splits a total across members. Created atomically with one
// spawned payment request per non-creator member.
type GroupExpense struct {
	ID          uuid.UUID
	Creator     uuid.UUID
	Title       string
	TotalAmount decimal.Decimal
	SplitMethod SplitMethod
	Category    string
	Members     []Member
	Status      ExpenseStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MemberIndex returns the index of the member entry for accountID, or -1.
func (e GroupExpense) MemberIndex(accountID uuid.UUID) int {
	for i, m := range e.Members {
		if m.AccountID == accountID {
			return i
		}
	}
	return -1
}

// AllPaid reports whether every member has settled their share.
func (e GroupExpense) AllPaid() bool {
	for _, m := range e.Members {
		if m.Status != MemberPaid {
			return false
		}
	}
	return true
}
