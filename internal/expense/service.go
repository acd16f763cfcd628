// Package expense implements group expenses: one account fronts a cost, the
// group splits it, and each member settles their share exactly once.
package expense

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillfold-dev/tillfold/internal/engine"
	"github.com/tillfold-dev/tillfold/internal/model"
	"github.com/tillfold-dev/tillfold/internal/store"
)

// Storage is the slice of the store the expense workflow needs.
type Storage interface {
	store.AccountStore
	store.RequestStore
	store.ExpenseStore
}

// Transferer executes a member's settlement payment.
type Transferer interface {
	Transfer(ctx context.Context, p engine.TransferParams) (engine.MovementResult, error)
}

// DefaultSplitTolerance is the allowed reconstruction drift per member, in
// cents, when verifying an equal split.
const DefaultSplitTolerance = 1

// Service mediates the group expense lifecycle.
type Service struct {
	store     Storage
	engine    Transferer
	tolerance int
	log       *slog.Logger
	mu        sync.Mutex
	locks     map[uuid.UUID]*sync.Mutex
}

// New creates a Service.
func New(storage Storage, eng Transferer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:     storage,
		engine:    eng,
		tolerance: DefaultSplitTolerance,
		log:       log,
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetSplitTolerance overrides the per-member equal-split drift allowance.
func (s *Service) SetSplitTolerance(cents int) {
	s.tolerance = cents
}

// expenseLock serializes settlement attempts on a single expense.
func (s *Service) expenseLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	return m
}

// Share names one member's portion of a custom split.
type Share struct {
	AccountNumber string
	Amount        decimal.Decimal
}

// CreateParams describe a new group expense. For an equal split leave Shares
// empty and list Members by account number; for a custom split fill Shares.
type CreateParams struct {
	Creator     uuid.UUID
	Title       string
	TotalAmount decimal.Decimal
	Category    string
	SplitMethod model.SplitMethod
	Members     []string
	Shares      []Share
}

// Create records the expense, computes each member's owed share, and spawns a
// payment request per non-creator member in one atomic unit. The creator's
// share is paid up front.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.GroupExpense, error) {
	if p.Title == "" {
		return model.GroupExpense{}, fmt.Errorf("%w: title required", model.ErrInvalidAmount)
	}
	if !p.TotalAmount.IsPositive() {
		return model.GroupExpense{}, model.ErrInvalidAmount
	}
	category := p.Category
	if category == "" {
		category = "other"
	}
	if !model.ValidExpenseCategory(category) {
		return model.GroupExpense{}, fmt.Errorf("%w: unknown category %q", model.ErrInvalidAmount, category)
	}
	creator, err := s.store.GetAccount(ctx, p.Creator)
	if err != nil {
		return model.GroupExpense{}, err
	}

	members, err := s.resolveMembers(ctx, creator, p)
	if err != nil {
		return model.GroupExpense{}, err
	}

	expense := model.GroupExpense{
		Creator:     creator.ID,
		Title:       p.Title,
		TotalAmount: p.TotalAmount,
		SplitMethod: p.SplitMethod,
		Category:    category,
		Members:     members,
	}

	var requests []model.PaymentRequest
	for _, m := range members {
		if m.Status != model.MemberPending {
			continue
		}
		requests = append(requests, model.PaymentRequest{
			Sender:   creator.ID,
			Receiver: m.AccountID,
			Amount:   m.Owed,
			Note:     fmt.Sprintf("Payment for %s", p.Title),
		})
	}

	created, err := s.store.CreateExpense(ctx, expense, requests)
	if err != nil {
		return model.GroupExpense{}, err
	}
	s.log.Info("expense created",
		"expense", created.ID, "creator", creator.ID,
		"total", p.TotalAmount, "members", len(members))
	return created, nil
}

// resolveMembers turns numbers or shares into the member list with owed
// amounts. The creator is always a member and always starts paid.
func (s *Service) resolveMembers(ctx context.Context, creator model.Account, p CreateParams) ([]model.Member, error) {
	switch p.SplitMethod {
	case model.SplitEqual:
		ids, err := s.resolveNumbers(ctx, creator, p.Members)
		if err != nil {
			return nil, err
		}
		if len(ids) < 2 {
			return nil, model.ErrInsufficientMembers
		}
		members := equalSplit(p.TotalAmount, creator.ID, ids)
		// The shares must reconstruct the total within the drift allowance.
		// Exact equality would spuriously reject splits like 100/3.
		sum := decimal.Zero
		for _, m := range members {
			sum = sum.Add(m.Owed)
		}
		allowed := decimal.New(int64(s.tolerance*len(members)), -2)
		if sum.Sub(p.TotalAmount).Abs().GreaterThan(allowed) {
			return nil, model.ErrSplitMismatch
		}
		return members, nil

	case model.SplitCustom:
		if len(p.Shares) < 2 {
			return nil, model.ErrInsufficientMembers
		}
		var members []model.Member
		seen := make(map[uuid.UUID]bool)
		sum := decimal.Zero
		creatorIncluded := false
		for _, share := range p.Shares {
			acct, err := s.store.GetAccountByNumber(ctx, share.AccountNumber)
			if err != nil {
				return nil, err
			}
			if seen[acct.ID] {
				continue
			}
			seen[acct.ID] = true
			if share.Amount.IsNegative() {
				return nil, model.ErrInvalidAmount
			}
			sum = sum.Add(share.Amount)
			status := model.MemberPending
			if acct.ID == creator.ID {
				creatorIncluded = true
				status = model.MemberPaid
			} else if share.Amount.IsZero() {
				// Nothing owed, nothing to request.
				status = model.MemberPaid
			}
			members = append(members, model.Member{
				AccountID: acct.ID, Owed: share.Amount, Status: status,
			})
		}
		if !creatorIncluded {
			return nil, fmt.Errorf("%w: creator must hold a share", model.ErrSplitMismatch)
		}
		if len(members) < 2 {
			return nil, model.ErrInsufficientMembers
		}
		if !sum.Equal(p.TotalAmount) {
			return nil, model.ErrSplitMismatch
		}
		return members, nil

	default:
		return nil, fmt.Errorf("unknown split method %q", p.SplitMethod)
	}
}

// resolveNumbers maps member account numbers to ids, deduplicating and
// ensuring the creator is in the group.
func (s *Service) resolveNumbers(ctx context.Context, creator model.Account, numbers []string) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{creator.ID: true}
	ids := []uuid.UUID{creator.ID}
	for _, number := range numbers {
		acct, err := s.store.GetAccountByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		if seen[acct.ID] {
			continue
		}
		seen[acct.ID] = true
		ids = append(ids, acct.ID)
	}
	return ids, nil
}

// equalSplit divides total evenly to the cent; the last member absorbs the
// rounding remainder so the shares always sum to the total.
func equalSplit(total decimal.Decimal, creatorID uuid.UUID, ids []uuid.UUID) []model.Member {
	n := int64(len(ids))
	share := total.DivRound(decimal.NewFromInt(n), 2)
	last := total.Sub(share.Mul(decimal.NewFromInt(n - 1)))

	members := make([]model.Member, 0, len(ids))
	for i, id := range ids {
		owed := share
		if i == len(ids)-1 {
			owed = last
		}
		status := model.MemberPending
		if id == creatorID {
			status = model.MemberPaid
		}
		members = append(members, model.Member{AccountID: id, Owed: owed, Status: status})
	}
	return members
}

// Get returns an expense visible to any member.
func (s *Service) Get(ctx context.Context, expenseID, acting uuid.UUID) (model.GroupExpense, error) {
	e, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return model.GroupExpense{}, err
	}
	if e.MemberIndex(acting) < 0 {
		return model.GroupExpense{}, model.ErrNotAMember
	}
	return e, nil
}

// ListForAccount returns every expense the account belongs to, newest first.
func (s *Service) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]model.GroupExpense, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.ListExpensesForAccount(ctx, accountID)
}

// SettleShare runs one member's settlement under the expense lock: the
// member must still be pending and the expense active before any money
// moves, so concurrent attempts settle a share at most once.
func (s *Service) SettleShare(ctx context.Context, expenseID, accountID uuid.UUID, transfer func() error) error {
	lock := s.expenseLock(expenseID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if e.Status != model.ExpenseActive {
		return model.ErrExpenseNotActive
	}
	i := e.MemberIndex(accountID)
	if i < 0 {
		return model.ErrNotAMember
	}
	if e.Members[i].Status == model.MemberPaid {
		return model.ErrMemberPaid
	}

	if err := transfer(); err != nil {
		return err
	}

	if _, err := s.store.MarkMemberPaid(ctx, expenseID, accountID); err != nil {
		s.log.Error("member state update failed after settlement transfer",
			"expense", expenseID, "account", accountID, "error", err)
		return err
	}
	return nil
}

// Pay settles the acting member's own share directly, transferring their owed
// amount to the creator. Any pending request the expense spawned for this
// member is declined so it cannot be accepted a second time.
func (s *Service) Pay(ctx context.Context, expenseID, acting uuid.UUID, pin string) (engine.MovementResult, error) {
	e, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return engine.MovementResult{}, err
	}
	i := e.MemberIndex(acting)
	if i < 0 {
		return engine.MovementResult{}, model.ErrNotAMember
	}
	owed := e.Members[i].Owed

	var result engine.MovementResult
	err = s.SettleShare(ctx, expenseID, acting, func() error {
		var terr error
		result, terr = s.engine.Transfer(ctx, engine.TransferParams{
			From:      acting,
			To:        e.Creator,
			Amount:    owed,
			PIN:       pin,
			Note:      fmt.Sprintf("Payment for %s", e.Title),
			Category:  e.Category,
			ExpenseID: &e.ID,
		})
		return terr
	})
	if err != nil {
		return engine.MovementResult{}, err
	}

	s.declineLinkedRequest(ctx, expenseID, acting)
	s.log.Info("expense share settled",
		"expense", expenseID, "member", acting, "movement", result.Movement.ID)
	return result, nil
}

// declineLinkedRequest closes the member's spawned request after a direct
// payment. Best effort; a lost race with Accept is already handled by the
// settled-share check.
func (s *Service) declineLinkedRequest(ctx context.Context, expenseID, accountID uuid.UUID) {
	reqs, err := s.store.ListRequestsForExpense(ctx, expenseID)
	if err != nil {
		s.log.Warn("could not list expense requests", "expense", expenseID, "error", err)
		return
	}
	for _, r := range reqs {
		if r.Receiver != accountID || r.Status != model.RequestPending {
			continue
		}
		if _, err := s.store.ResolveRequest(ctx, r.ID, model.RequestDeclined); err != nil && err != model.ErrRequestResolved {
			s.log.Warn("could not close expense request", "request", r.ID, "error", err)
		}
	}
}

// Settle completes the expense. Creator only; every member must have paid.
// Completing an already completed expense is a no-op.
func (s *Service) Settle(ctx context.Context, expenseID, acting uuid.UUID) (model.GroupExpense, error) {
	lock := s.expenseLock(expenseID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return model.GroupExpense{}, err
	}
	if e.Creator != acting {
		return model.GroupExpense{}, model.ErrNotAuthorized
	}
	if e.Status == model.ExpenseCompleted {
		return e, nil
	}
	if e.Status != model.ExpenseActive {
		return model.GroupExpense{}, model.ErrExpenseNotActive
	}
	if !e.AllPaid() {
		return model.GroupExpense{}, model.ErrNotAllPaid
	}

	completed, err := s.store.SetExpenseStatus(ctx, expenseID, model.ExpenseActive, model.ExpenseCompleted)
	if err != nil {
		return model.GroupExpense{}, err
	}
	s.log.Info("expense completed", "expense", expenseID)
	return completed, nil
}

// Cancel voids an active expense and declines its outstanding requests.
// Creator only. Shares already settled stay settled; no refunds are issued.
func (s *Service) Cancel(ctx context.Context, expenseID, acting uuid.UUID) (model.GroupExpense, error) {
	lock := s.expenseLock(expenseID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return model.GroupExpense{}, err
	}
	if e.Creator != acting {
		return model.GroupExpense{}, model.ErrNotAuthorized
	}

	cancelled, err := s.store.SetExpenseStatus(ctx, expenseID, model.ExpenseActive, model.ExpenseCancelled)
	if err != nil {
		return model.GroupExpense{}, err
	}

	reqs, err := s.store.ListRequestsForExpense(ctx, expenseID)
	if err != nil {
		return model.GroupExpense{}, err
	}
	for _, r := range reqs {
		if r.Status != model.RequestPending {
			continue
		}
		if _, err := s.store.ResolveRequest(ctx, r.ID, model.RequestDeclined); err != nil && err != model.ErrRequestResolved {
			s.log.Warn("could not close expense request", "request", r.ID, "error", err)
		}
	}
	s.log.Info("expense cancelled", "expense", expenseID)
	return cancelled, nil
}
