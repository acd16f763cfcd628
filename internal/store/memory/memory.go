// Package memory is an in-memory implementation of the storage contracts. It
// is safe for concurrent use and backs the test suite and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tillfold-dev/tillfold/internal/model"
	"github.com/tillfold-dev/tillfold/internal/store"
)

// Store holds every aggregate behind a single RWMutex and returns clones so
// callers can never alias its internal state.
type Store struct {
	mu               sync.RWMutex
	accounts         map[uuid.UUID]model.Account
	accountsByNumber map[string]uuid.UUID
	movements        map[uuid.UUID]model.Movement
	movementOrder    []uuid.UUID
	movementsByRef   map[string]uuid.UUID
	requests         map[uuid.UUID]model.PaymentRequest
	requestOrder     []uuid.UUID
	expenses         map[uuid.UUID]model.GroupExpense
	expenseOrder     []uuid.UUID
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts:         make(map[uuid.UUID]model.Account),
		accountsByNumber: make(map[string]uuid.UUID),
		movements:        make(map[uuid.UUID]model.Movement),
		movementsByRef:   make(map[string]uuid.UUID),
		requests:         make(map[uuid.UUID]model.PaymentRequest),
		expenses:         make(map[uuid.UUID]model.GroupExpense),
	}
}

// AccountStore implementation -------------------------------------------------

func (s *Store) CreateAccount(_ context.Context, acct model.Account) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.accountsByNumber[acct.Number]; taken {
		return model.Account{}, model.ErrDuplicateNumber
	}
	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}

	s.accounts[acct.ID] = acct
	s.accountsByNumber[acct.Number] = acct.ID
	return acct, nil
}

func (s *Store) GetAccount(_ context.Context, id uuid.UUID) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return acct, nil
}

func (s *Store) GetAccountByNumber(_ context.Context, number string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.accountsByNumber[number]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) ListAccounts(_ context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		result = append(result, acct)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (s *Store) SetPINHash(_ context.Context, id uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	acct.PINHash = hash
	s.accounts[id] = acct
	return nil
}

func (s *Store) ApplyMovement(_ context.Context, mv model.Movement, deltas []store.BalanceDelta) (model.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every delta before touching anything.
	updated := make(map[uuid.UUID]model.Account, len(deltas))
	for _, d := range deltas {
		acct, ok := s.accounts[d.AccountID]
		if !ok {
			return model.Movement{}, model.ErrAccountNotFound
		}
		if prior, seen := updated[d.AccountID]; seen {
			acct = prior
		}
		acct.Balance = acct.Balance.Add(d.Delta)
		if acct.Balance.IsNegative() {
			return model.Movement{}, model.ErrInsufficientFunds
		}
		updated[d.AccountID] = acct
	}

	if mv.ID == uuid.Nil {
		mv.ID = uuid.New()
	}
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = time.Now().UTC()
	}

	for id, acct := range updated {
		s.accounts[id] = acct
	}
	s.movements[mv.ID] = mv
	s.movementOrder = append(s.movementOrder, mv.ID)
	if mv.ClientRef != "" {
		s.movementsByRef[mv.ClientRef] = mv.ID
	}
	return mv, nil
}

// LedgerStore implementation --------------------------------------------------

func (s *Store) GetMovement(_ context.Context, id uuid.UUID) (model.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mv, ok := s.movements[id]
	if !ok {
		return model.Movement{}, model.ErrMovementNotFound
	}
	return mv, nil
}

func (s *Store) ListMovements(_ context.Context, accountID uuid.UUID) ([]model.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Movement
	// movementOrder is append-only, so reverse iteration yields newest first.
	for i := len(s.movementOrder) - 1; i >= 0; i-- {
		mv := s.movements[s.movementOrder[i]]
		if mv.Involves(accountID) {
			result = append(result, mv)
		}
	}
	return result, nil
}

func (s *Store) GetMovementByClientRef(_ context.Context, ref string) (model.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.movementsByRef[ref]
	if !ok {
		return model.Movement{}, model.ErrMovementNotFound
	}
	return s.movements[id], nil
}

func (s *Store) AnnotateMovement(_ context.Context, id uuid.UUID, note string) (model.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mv, ok := s.movements[id]
	if !ok {
		return model.Movement{}, model.ErrMovementNotFound
	}
	mv.Note = note
	s.movements[id] = mv
	return mv, nil
}

// RequestStore implementation -------------------------------------------------

func (s *Store) CreateRequest(_ context.Context, r model.PaymentRequest) (model.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createRequestLocked(&r)
	return r, nil
}

func (s *Store) createRequestLocked(r *model.PaymentRequest) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = model.RequestPending
	}
	s.requests[r.ID] = *r
	s.requestOrder = append(s.requestOrder, r.ID)
}

func (s *Store) GetRequest(_ context.Context, id uuid.UUID) (model.PaymentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return model.PaymentRequest{}, model.ErrRequestNotFound
	}
	return r, nil
}

func (s *Store) ListRequestsForAccount(_ context.Context, accountID uuid.UUID) ([]model.PaymentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.PaymentRequest
	for i := len(s.requestOrder) - 1; i >= 0; i-- {
		r := s.requests[s.requestOrder[i]]
		if r.Sender == accountID || r.Receiver == accountID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *Store) ListRequestsForExpense(_ context.Context, expenseID uuid.UUID) ([]model.PaymentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.PaymentRequest
	for i := len(s.requestOrder) - 1; i >= 0; i-- {
		r := s.requests[s.requestOrder[i]]
		if r.ExpenseID != nil && *r.ExpenseID == expenseID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *Store) ResolveRequest(_ context.Context, id uuid.UUID, to model.RequestStatus) (model.PaymentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return model.PaymentRequest{}, model.ErrRequestNotFound
	}
	if !r.Status.CanTransition(to) {
		return model.PaymentRequest{}, model.ErrRequestResolved
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	s.requests[id] = r
	return r, nil
}

// ExpenseStore implementation -------------------------------------------------

func (s *Store) CreateExpense(_ context.Context, e model.GroupExpense, requests []model.PaymentRequest) (model.GroupExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = model.ExpenseActive
	}
	e.Members = cloneMembers(e.Members)

	s.expenses[e.ID] = e
	s.expenseOrder = append(s.expenseOrder, e.ID)

	for i := range requests {
		requests[i].ExpenseID = &e.ID
		s.createRequestLocked(&requests[i])
	}
	return cloneExpense(e), nil
}

func (s *Store) GetExpense(_ context.Context, id uuid.UUID) (model.GroupExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenses[id]
	if !ok {
		return model.GroupExpense{}, model.ErrExpenseNotFound
	}
	return cloneExpense(e), nil
}

func (s *Store) ListExpensesForAccount(_ context.Context, accountID uuid.UUID) ([]model.GroupExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.GroupExpense
	for i := len(s.expenseOrder) - 1; i >= 0; i-- {
		e := s.expenses[s.expenseOrder[i]]
		if e.Creator == accountID || e.MemberIndex(accountID) >= 0 {
			result = append(result, cloneExpense(e))
		}
	}
	return result, nil
}

func (s *Store) MarkMemberPaid(_ context.Context, expenseID, accountID uuid.UUID) (model.GroupExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[expenseID]
	if !ok {
		return model.GroupExpense{}, model.ErrExpenseNotFound
	}
	if e.Status != model.ExpenseActive {
		return model.GroupExpense{}, model.ErrExpenseNotActive
	}
	idx := e.MemberIndex(accountID)
	if idx < 0 {
		return model.GroupExpense{}, model.ErrNotAMember
	}
	if e.Members[idx].Status == model.MemberPaid {
		return model.GroupExpense{}, model.ErrMemberPaid
	}

	e.Members = cloneMembers(e.Members)
	e.Members[idx].Status = model.MemberPaid
	if e.AllPaid() {
		e.Status = model.ExpenseCompleted
	}
	e.UpdatedAt = time.Now().UTC()
	s.expenses[expenseID] = e
	return cloneExpense(e), nil
}

func (s *Store) SetExpenseStatus(_ context.Context, id uuid.UUID, from, to model.ExpenseStatus) (model.GroupExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[id]
	if !ok {
		return model.GroupExpense{}, model.ErrExpenseNotFound
	}
	if e.Status != from || !from.CanTransition(to) {
		return model.GroupExpense{}, model.ErrExpenseNotActive
	}
	e.Status = to
	e.UpdatedAt = time.Now().UTC()
	s.expenses[id] = e
	return cloneExpense(e), nil
}

func cloneMembers(members []model.Member) []model.Member {
	out := make([]model.Member, len(members))
	copy(out, members)
	return out
}

func cloneExpense(e model.GroupExpense) model.GroupExpense {
	e.Members = cloneMembers(e.Members)
	return e
}
