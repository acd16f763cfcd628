package expense

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tillfold-dev/tillfold/internal/engine"
	"github.com/tillfold-dev/tillfold/internal/model"
	"github.com/tillfold-dev/tillfold/internal/pin"
	"github.com/tillfold-dev/tillfold/internal/request"
	"github.com/tillfold-dev/tillfold/internal/store/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	service  *Service
	requests *request.Service
	engine   *engine.Engine
	store    *memory.Store
	gate     *pin.Gate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	gate := pin.NewGate(s, bcrypt.MinCost)
	eng := engine.New(s, gate, engine.DefaultPolicy(), nil)
	svc := New(s, eng, nil)
	reqs := request.New(s, eng, nil)
	reqs.SetSettler(svc)
	return &fixture{service: svc, requests: reqs, engine: eng, store: s, gate: gate}
}

func (f *fixture) account(t *testing.T, balance string) model.Account {
	t.Helper()
	ctx := context.Background()

	acct, err := f.engine.Register(ctx, engine.RegisterParams{FirstName: "Ada"})
	require.NoError(t, err)
	require.NoError(t, f.gate.Set(ctx, acct.ID, "1234", ""))

	if b := dec(balance); b.IsPositive() {
		_, err = f.engine.Deposit(ctx, engine.DepositParams{AccountID: acct.ID, Amount: b, PIN: "1234"})
		require.NoError(t, err)
	}
	return acct
}

func TestCreate_EqualSplit(t *testing.T) {
	f := newFixture(t)
	creator := f.account(t, "0")
	m1 := f.account(t, "0")
	m2 := f.account(t, "0")
	ctx := context.Background()

	e, err := f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Dinner", TotalAmount: dec("100"),
		Category: "food", SplitMethod: model.SplitEqual,
		Members: []string{m1.Number, m2.Number},
	})
	require.NoError(t, err)
	require.Len(t, e.Members, 3)

	// 100 / 3 rounds to 33.33; the last member absorbs the remainder.
	sum := decimal.Zero
	for _, m := range e.Members {
		sum = sum.Add(m.Owed)
	}
	assert.True(t, sum.Equal(dec("100")))
	assert.True(t, e.Members[0].Owed.Equal(dec("33.33")))
	assert.True(t, e.Members[2].Owed.Equal(dec("33.34")))

	// Creator is settled up front; the others each get a request.
	assert.Equal(t, model.MemberPaid, e.Members[0].Status)
	reqs, err := f.store.ListRequestsForExpense(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		assert.Equal(t, creator.ID, r.Sender)
		assert.Equal(t, "Payment for Dinner", r.Note)
	}
}

func TestCreate_CustomSplit(t *testing.T) {
	f := newFixture(t)
	creator := f.account(t, "0")
	m1 := f.account(t, "0")
	ctx := context.Background()

	e, err := f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Groceries", TotalAmount: dec("60"),
		SplitMethod: model.SplitCustom,
		Shares: []Share{
			{AccountNumber: creator.Number, Amount: dec("40")},
			{AccountNumber: m1.Number, Amount: dec("20")},
		},
	})
	require.NoError(t, err)
	assert.True(t, e.Members[0].Owed.Equal(dec("40")))
	assert.True(t, e.Members[1].Owed.Equal(dec("20")))
	assert.Equal(t, "other", e.Category)
}

func TestCreate_Errors(t *testing.T) {
	f := newFixture(t)
	creator := f.account(t, "0")
	m1 := f.account(t, "0")
	ctx := context.Background()

	// Members below two after dedup.
	_, err := f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Solo", TotalAmount: dec("10"),
		SplitMethod: model.SplitEqual, Members: []string{creator.Number},
	})
	assert.ErrorIs(t, err, model.ErrInsufficientMembers)

	// Custom shares must sum to the total.
	_, err = f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Off", TotalAmount: dec("60"),
		SplitMethod: model.SplitCustom,
		Shares: []Share{
			{AccountNumber: creator.Number, Amount: dec("40")},
			{AccountNumber: m1.Number, Amount: dec("10")},
		},
	})
	assert.ErrorIs(t, err, model.ErrSplitMismatch)

	// Creator must hold a share.
	_, err = f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Absent", TotalAmount: dec("60"),
		SplitMethod: model.SplitCustom,
		Shares: []Share{
			{AccountNumber: m1.Number, Amount: dec("60")},
			{AccountNumber: m1.Number, Amount: dec("0")},
		},
	})
	assert.ErrorIs(t, err, model.ErrSplitMismatch)

	_, err = f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Bad", TotalAmount: dec("10"),
		Category: "yachts", SplitMethod: model.SplitEqual, Members: []string{m1.Number},
	})
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
}

func TestCreate_ZeroShareAutoSettled(t *testing.T) {
	f := newFixture(t)
	creator := f.account(t, "0")
	m1 := f.account(t, "0")
	m2 := f.account(t, "0")
	ctx := context.Background()

	e, err := f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Covered", TotalAmount: dec("50"),
		SplitMethod: model.SplitCustom,
		Shares: []Share{
			{AccountNumber: creator.Number, Amount: dec("30")},
			{AccountNumber: m1.Number, Amount: dec("20")},
			{AccountNumber: m2.Number, Amount: dec("0")},
		},
	})
	require.NoError(t, err)

	// The zero-owed member starts settled and gets no request.
	assert.Equal(t, model.MemberPaid, e.Members[2].Status)
	reqs, err := f.store.ListRequestsForExpense(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, m1.ID, reqs[0].Receiver)
}

func TestPay(t *testing.T) {
	f := newFixture(t)
	creator := f.account(t, "0")
	m1 := f.account(t, "100")
	ctx := context.Background()

	e, err := f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Dinner", TotalAmount: dec("60"),
		Category: "food", SplitMethod: model.SplitEqual, Members: []string{m1.Number},
	})
	require.NoError(t, err)

	result, err := f.service.Pay(ctx, e.ID, m1.ID, "1234")
	require.NoError(t, err)
	assert.True(t, result.NewBalance.Equal(dec("70")))
	require.NotNil(t, result.Movement.ExpenseID)
	assert.Equal(t, e.ID, *result.Movement.ExpenseID)

	creatorBal, err := f.engine.GetBalance(ctx, creator.ID)
	require.NoError(t, err)
	assert.True(t, creatorBal.Equal(dec("30")))

	// Last member settled: the expense auto-completes and the spawned
	// request is closed.
	got, err := f.service.Get(ctx, e.ID, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExpenseCompleted, got.Status)

	reqs, err := f.store.ListRequestsForExpense(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, model.RequestDeclined, reqs[0].Status)

	// Paying twice moves nothing.
	_, err = f.service.Pay(ctx, e.ID, m1.ID, "1234")
	assert.ErrorIs(t, err, model.ErrExpenseNotActive)
	bal, _ := f.engine.GetBalance(ctx, m1.ID)
	assert.True(t, bal.Equal(dec("70")))
}

func TestAcceptSpawnedRequest_SettlesShare(t *testing.T) {
	f := newFixture(t)
	creator := f.account(t, "0")
	m1 := f.account(t, "100")
	m2 := f.account(t, "100")
	ctx := context.Background()

	e, err := f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Trip", TotalAmount: dec("90"),
		Category: "travel", SplitMethod: model.SplitEqual,
		Members: []string{m1.Number, m2.Number},
	})
	require.NoError(t, err)

	reqs, err := f.store.ListRequestsForExpense(ctx, e.ID)
	require.NoError(t, err)
	var m1Req model.PaymentRequest
	for _, r := range reqs {
		if r.Receiver == m1.ID {
			m1Req = r
		}
	}
	require.NotEqual(t, model.PaymentRequest{}, m1Req)

	_, result, err := f.requests.Accept(ctx, m1Req.ID, m1.ID, "1234")
	require.NoError(t, err)
	assert.True(t, result.NewBalance.Equal(dec("70")))

	got, err := f.service.Get(ctx, e.ID, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MemberPaid, got.Members[got.MemberIndex(m1.ID)].Status)
	assert.Equal(t, model.ExpenseActive, got.Status)
}

func TestLifecycle_PayThenAccept(t *testing.T) {
	f := newFixture(t)
	creator := f.account(t, "0")
	m1 := f.account(t, "100")
	m2 := f.account(t, "100")
	ctx := context.Background()

	e, err := f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Trip", TotalAmount: dec("90"),
		Category: "travel", SplitMethod: model.SplitEqual,
		Members: []string{m1.Number, m2.Number},
	})
	require.NoError(t, err)
	for _, m := range e.Members {
		assert.True(t, m.Owed.Equal(dec("30")))
	}

	// First member pays directly; the expense stays active.
	_, err = f.service.Pay(ctx, e.ID, m1.ID, "1234")
	require.NoError(t, err)
	got, err := f.service.Get(ctx, e.ID, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExpenseActive, got.Status)

	// Second member accepts their spawned request; that completes the set.
	reqs, err := f.store.ListRequestsForExpense(ctx, e.ID)
	require.NoError(t, err)
	for _, r := range reqs {
		if r.Receiver == m2.ID {
			_, _, err = f.requests.Accept(ctx, r.ID, m2.ID, "1234")
			require.NoError(t, err)
		}
	}
	got, err = f.service.Get(ctx, e.ID, m2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExpenseCompleted, got.Status)

	// The other resolution path is now a conflict and moves nothing.
	_, err = f.service.Pay(ctx, e.ID, m2.ID, "1234")
	assert.ErrorIs(t, err, model.ErrExpenseNotActive)

	creatorBal, err := f.engine.GetBalance(ctx, creator.ID)
	require.NoError(t, err)
	assert.True(t, creatorBal.Equal(dec("60")))
}

func TestPayAndAcceptRace_SettlesOnce(t *testing.T) {
	f := newFixture(t)
	creator := f.account(t, "0")
	m1 := f.account(t, "100")
	m2 := f.account(t, "100")
	ctx := context.Background()

	e, err := f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Trip", TotalAmount: dec("90"),
		Category: "travel", SplitMethod: model.SplitEqual,
		Members: []string{m1.Number, m2.Number},
	})
	require.NoError(t, err)

	reqs, err := f.store.ListRequestsForExpense(ctx, e.ID)
	require.NoError(t, err)
	var m1Req model.PaymentRequest
	for _, r := range reqs {
		if r.Receiver == m1.ID {
			m1Req = r
		}
	}

	// A direct payment races an acceptance of the spawned request. The
	// share must settle exactly once.
	var wg sync.WaitGroup
	var payErr, acceptErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, payErr = f.service.Pay(ctx, e.ID, m1.ID, "1234")
	}()
	go func() {
		defer wg.Done()
		_, _, acceptErr = f.requests.Accept(ctx, m1Req.ID, m1.ID, "1234")
	}()
	wg.Wait()

	var failures int
	for _, err := range []error{payErr, acceptErr} {
		if err != nil {
			// The loser sees the share already settled, or the spawned
			// request already closed by the direct payment.
			failed := errors.Is(err, model.ErrMemberPaid) ||
				errors.Is(err, model.ErrRequestResolved)
			assert.True(t, failed, "unexpected error: %v", err)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	// Exactly one share's worth moved.
	bal, err := f.engine.GetBalance(ctx, m1.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("70")))
	creatorBal, _ := f.engine.GetBalance(ctx, creator.ID)
	assert.True(t, creatorBal.Equal(dec("30")))
}

func TestSettle(t *testing.T) {
	f := newFixture(t)
	creator := f.account(t, "0")
	m1 := f.account(t, "100")
	ctx := context.Background()

	e, err := f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Dinner", TotalAmount: dec("60"),
		Category: "food", SplitMethod: model.SplitEqual, Members: []string{m1.Number},
	})
	require.NoError(t, err)

	_, err = f.service.Settle(ctx, e.ID, m1.ID)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	_, err = f.service.Settle(ctx, e.ID, creator.ID)
	assert.ErrorIs(t, err, model.ErrNotAllPaid)

	_, err = f.service.Pay(ctx, e.ID, m1.ID, "1234")
	require.NoError(t, err)

	// Auto-completed on the last payment; settling again is a no-op.
	got, err := f.service.Settle(ctx, e.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExpenseCompleted, got.Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	creator := f.account(t, "0")
	m1 := f.account(t, "100")
	m2 := f.account(t, "100")
	ctx := context.Background()

	e, err := f.service.Create(ctx, CreateParams{
		Creator: creator.ID, Title: "Trip", TotalAmount: dec("90"),
		Category: "travel", SplitMethod: model.SplitEqual,
		Members: []string{m1.Number, m2.Number},
	})
	require.NoError(t, err)

	// One member settles before the cancellation; their payment stands.
	_, err = f.service.Pay(ctx, e.ID, m1.ID, "1234")
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, e.ID, m1.ID)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	cancelled, err := f.service.Cancel(ctx, e.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExpenseCancelled, cancelled.Status)

	// Outstanding requests are declined and can no longer be accepted.
	reqs, err := f.store.ListRequestsForExpense(ctx, e.ID)
	require.NoError(t, err)
	for _, r := range reqs {
		assert.Equal(t, model.RequestDeclined, r.Status)
	}

	_, err = f.service.Pay(ctx, e.ID, m2.ID, "1234")
	assert.ErrorIs(t, err, model.ErrExpenseNotActive)

	_, err = f.service.Cancel(ctx, e.ID, creator.ID)
	assert.ErrorIs(t, err, model.ErrExpenseNotActive)

	bal, _ := f.engine.GetBalance(ctx, m1.ID)
	assert.True(t, bal.Equal(dec("70")))
}
