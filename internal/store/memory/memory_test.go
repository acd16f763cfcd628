package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillfold-dev/tillfold/internal/model"
	"github.com/tillfold-dev/tillfold/internal/store"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newAccount(t *testing.T, s *Store, number string, balance string) model.Account {
	t.Helper()
	acct, err := s.CreateAccount(context.Background(), model.Account{
		Number:    number,
		FirstName: "Test",
		Balance:   dec(balance),
	})
	require.NoError(t, err)
	return acct
}

func TestCreateAccount_DuplicateNumber(t *testing.T) {
	s := New()
	newAccount(t, s, "ACC000001", "0")

	_, err := s.CreateAccount(context.Background(), model.Account{Number: "ACC000001"})
	assert.ErrorIs(t, err, model.ErrDuplicateNumber)
}

func TestGetAccountByNumber(t *testing.T) {
	s := New()
	acct := newAccount(t, s, "ACC000002", "10")

	got, err := s.GetAccountByNumber(context.Background(), "ACC000002")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)

	_, err = s.GetAccountByNumber(context.Background(), "ACC999999")
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
}

func TestApplyMovement_Transfer(t *testing.T) {
	s := New()
	a := newAccount(t, s, "ACC000001", "100")
	b := newAccount(t, s, "ACC000002", "0")

	mv, err := s.ApplyMovement(context.Background(), model.Movement{
		From: a.ID, To: b.ID, Amount: dec("40"),
		Kind: model.KindTransfer, Status: model.MovementCompleted,
	}, []store.BalanceDelta{
		{AccountID: a.ID, Delta: dec("-40")},
		{AccountID: b.ID, Delta: dec("40")},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, mv.ID)

	gotA, _ := s.GetAccount(context.Background(), a.ID)
	gotB, _ := s.GetAccount(context.Background(), b.ID)
	assert.True(t, gotA.Balance.Equal(dec("60")))
	assert.True(t, gotB.Balance.Equal(dec("40")))
}

func TestApplyMovement_InsufficientLeavesStateUntouched(t *testing.T) {
	s := New()
	a := newAccount(t, s, "ACC000001", "10")
	b := newAccount(t, s, "ACC000002", "0")

	_, err := s.ApplyMovement(context.Background(), model.Movement{
		From: a.ID, To: b.ID, Amount: dec("40"),
		Kind: model.KindTransfer, Status: model.MovementCompleted,
	}, []store.BalanceDelta{
		{AccountID: a.ID, Delta: dec("-40")},
		{AccountID: b.ID, Delta: dec("40")},
	})
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	gotA, _ := s.GetAccount(context.Background(), a.ID)
	gotB, _ := s.GetAccount(context.Background(), b.ID)
	assert.True(t, gotA.Balance.Equal(dec("10")))
	assert.True(t, gotB.Balance.Equal(dec("0")))

	movements, err := s.ListMovements(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestListMovements_NewestFirst(t *testing.T) {
	s := New()
	a := newAccount(t, s, "ACC000001", "100")

	for _, amount := range []string{"1", "2", "3"} {
		_, err := s.ApplyMovement(context.Background(), model.Movement{
			From: a.ID, To: a.ID, Amount: dec(amount),
			Kind: model.KindDeposit, Status: model.MovementCompleted,
		}, []store.BalanceDelta{{AccountID: a.ID, Delta: dec(amount)}})
		require.NoError(t, err)
	}

	movements, err := s.ListMovements(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.True(t, movements[0].Amount.Equal(dec("3")))
	assert.True(t, movements[2].Amount.Equal(dec("1")))
}

func TestGetMovementByClientRef(t *testing.T) {
	s := New()
	a := newAccount(t, s, "ACC000001", "0")

	mv, err := s.ApplyMovement(context.Background(), model.Movement{
		From: a.ID, To: a.ID, Amount: dec("5"),
		Kind: model.KindDeposit, Status: model.MovementCompleted, ClientRef: "retry-1",
	}, []store.BalanceDelta{{AccountID: a.ID, Delta: dec("5")}})
	require.NoError(t, err)

	got, err := s.GetMovementByClientRef(context.Background(), "retry-1")
	require.NoError(t, err)
	assert.Equal(t, mv.ID, got.ID)

	_, err = s.GetMovementByClientRef(context.Background(), "unknown")
	assert.ErrorIs(t, err, model.ErrMovementNotFound)
}

func TestAnnotateMovement(t *testing.T) {
	s := New()
	a := newAccount(t, s, "ACC000001", "0")

	mv, err := s.ApplyMovement(context.Background(), model.Movement{
		From: a.ID, To: a.ID, Amount: dec("5"),
		Kind: model.KindDeposit, Status: model.MovementCompleted,
	}, []store.BalanceDelta{{AccountID: a.ID, Delta: dec("5")}})
	require.NoError(t, err)

	got, err := s.AnnotateMovement(context.Background(), mv.ID, "rent share")
	require.NoError(t, err)
	assert.Equal(t, "rent share", got.Note)

	_, err = s.AnnotateMovement(context.Background(), uuid.New(), "x")
	assert.ErrorIs(t, err, model.ErrMovementNotFound)
}

func TestResolveRequest_ExactlyOnce(t *testing.T) {
	s := New()
	r, err := s.CreateRequest(context.Background(), model.PaymentRequest{
		Sender: uuid.New(), Receiver: uuid.New(), Amount: dec("10"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, r.Status)

	resolved, err := s.ResolveRequest(context.Background(), r.ID, model.RequestAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.RequestAccepted, resolved.Status)

	_, err = s.ResolveRequest(context.Background(), r.ID, model.RequestDeclined)
	assert.ErrorIs(t, err, model.ErrRequestResolved)
	_, err = s.ResolveRequest(context.Background(), r.ID, model.RequestAccepted)
	assert.ErrorIs(t, err, model.ErrRequestResolved)
}

func TestCreateExpense_SpawnsRequests(t *testing.T) {
	s := New()
	creator, m1 := uuid.New(), uuid.New()

	e, err := s.CreateExpense(context.Background(), model.GroupExpense{
		Creator: creator, Title: "Dinner", TotalAmount: dec("60"),
		SplitMethod: model.SplitEqual, Category: "food",
		Members: []model.Member{
			{AccountID: creator, Owed: dec("30"), Status: model.MemberPaid},
			{AccountID: m1, Owed: dec("30"), Status: model.MemberPending},
		},
	}, []model.PaymentRequest{
		{Sender: creator, Receiver: m1, Amount: dec("30"), Note: "Payment for Dinner"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ExpenseActive, e.Status)

	reqs, err := s.ListRequestsForExpense(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, e.ID, *reqs[0].ExpenseID)
	assert.Equal(t, model.RequestPending, reqs[0].Status)
}

func TestMarkMemberPaid(t *testing.T) {
	s := New()
	creator, m1, m2 := uuid.New(), uuid.New(), uuid.New()

	e, err := s.CreateExpense(context.Background(), model.GroupExpense{
		Creator: creator, Title: "Trip", TotalAmount: dec("90"),
		SplitMethod: model.SplitEqual,
		Members: []model.Member{
			{AccountID: creator, Owed: dec("30"), Status: model.MemberPaid},
			{AccountID: m1, Owed: dec("30"), Status: model.MemberPending},
			{AccountID: m2, Owed: dec("30"), Status: model.MemberPending},
		},
	}, nil)
	require.NoError(t, err)

	got, err := s.MarkMemberPaid(context.Background(), e.ID, m1)
	require.NoError(t, err)
	assert.Equal(t, model.ExpenseActive, got.Status)

	// Second settle of the same member conflicts.
	_, err = s.MarkMemberPaid(context.Background(), e.ID, m1)
	assert.ErrorIs(t, err, model.ErrMemberPaid)

	// Non-member.
	_, err = s.MarkMemberPaid(context.Background(), e.ID, uuid.New())
	assert.ErrorIs(t, err, model.ErrNotAMember)

	// Last settle completes the expense.
	got, err = s.MarkMemberPaid(context.Background(), e.ID, m2)
	require.NoError(t, err)
	assert.Equal(t, model.ExpenseCompleted, got.Status)

	// No settles after completion.
	_, err = s.MarkMemberPaid(context.Background(), e.ID, m2)
	assert.ErrorIs(t, err, model.ErrExpenseNotActive)
}

func TestSetExpenseStatus_CAS(t *testing.T) {
	s := New()
	e, err := s.CreateExpense(context.Background(), model.GroupExpense{
		Creator: uuid.New(), Title: "x", TotalAmount: dec("10"),
		SplitMethod: model.SplitCustom,
		Members:     []model.Member{{AccountID: uuid.New(), Owed: dec("10"), Status: model.MemberPending}},
	}, nil)
	require.NoError(t, err)

	got, err := s.SetExpenseStatus(context.Background(), e.ID, model.ExpenseActive, model.ExpenseCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.ExpenseCancelled, got.Status)

	_, err = s.SetExpenseStatus(context.Background(), e.ID, model.ExpenseActive, model.ExpenseCancelled)
	assert.ErrorIs(t, err, model.ErrExpenseNotActive)
}

func TestGetExpense_ReturnsClone(t *testing.T) {
	s := New()
	m := uuid.New()
	e, err := s.CreateExpense(context.Background(), model.GroupExpense{
		Creator: uuid.New(), Title: "x", TotalAmount: dec("10"),
		SplitMethod: model.SplitCustom,
		Members:     []model.Member{{AccountID: m, Owed: dec("10"), Status: model.MemberPending}},
	}, nil)
	require.NoError(t, err)

	got, err := s.GetExpense(context.Background(), e.ID)
	require.NoError(t, err)
	got.Members[0].Status = model.MemberPaid

	again, err := s.GetExpense(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MemberPending, again.Members[0].Status)
}
