package pin

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tillfold-dev/tillfold/internal/model"
)

// mockAccounts implements Accounts over a single map.
type mockAccounts struct {
	accts map[uuid.UUID]model.Account
}

func newMockAccounts(ids ...uuid.UUID) *mockAccounts {
	m := &mockAccounts{accts: make(map[uuid.UUID]model.Account)}
	for _, id := range ids {
		m.accts[id] = model.Account{ID: id}
	}
	return m
}

func (m *mockAccounts) GetAccount(_ context.Context, id uuid.UUID) (model.Account, error) {
	a, ok := m.accts[id]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return a, nil
}

func (m *mockAccounts) SetPINHash(_ context.Context, id uuid.UUID, hash string) error {
	a, ok := m.accts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	a.PINHash = hash
	m.accts[id] = a
	return nil
}

func TestGate_SetAndVerify(t *testing.T) {
	id := uuid.New()
	accts := newMockAccounts(id)
	gate := NewGate(accts, bcrypt.MinCost)

	require.NoError(t, gate.Set(context.Background(), id, "1234", ""))

	assert.NoError(t, gate.Verify(context.Background(), id, "1234"))
	assert.ErrorIs(t, gate.Verify(context.Background(), id, "9999"), model.ErrInvalidPin)

	// Raw PIN must never be stored.
	assert.NotContains(t, accts.accts[id].PINHash, "1234")
}

func TestGate_SetMalformed(t *testing.T) {
	id := uuid.New()
	gate := NewGate(newMockAccounts(id), bcrypt.MinCost)

	for _, bad := range []string{"", "123", "12345", "abcd", "12a4"} {
		assert.ErrorIs(t, gate.Set(context.Background(), id, bad, ""), model.ErrMalformedPin, "pin=%q", bad)
	}
}

func TestGate_InitialSetupTwice(t *testing.T) {
	id := uuid.New()
	gate := NewGate(newMockAccounts(id), bcrypt.MinCost)

	require.NoError(t, gate.Set(context.Background(), id, "1234", ""))
	assert.ErrorIs(t, gate.Set(context.Background(), id, "5678", ""), model.ErrPinAlreadySet)
}

func TestGate_Change(t *testing.T) {
	id := uuid.New()
	gate := NewGate(newMockAccounts(id), bcrypt.MinCost)

	require.NoError(t, gate.Set(context.Background(), id, "1234", ""))

	assert.ErrorIs(t, gate.Set(context.Background(), id, "5678", "0000"), model.ErrInvalidOldPin)
	require.NoError(t, gate.Set(context.Background(), id, "5678", "1234"))

	assert.NoError(t, gate.Verify(context.Background(), id, "5678"))
	assert.ErrorIs(t, gate.Verify(context.Background(), id, "1234"), model.ErrInvalidPin)
}

func TestGate_VerifyFailsClosed(t *testing.T) {
	id := uuid.New()
	gate := NewGate(newMockAccounts(id), bcrypt.MinCost)

	assert.ErrorIs(t, gate.Verify(context.Background(), id, "1234"), model.ErrPinNotConfigured)

	ok, err := gate.Configured(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGate_UnknownAccount(t *testing.T) {
	gate := NewGate(newMockAccounts(), bcrypt.MinCost)
	assert.ErrorIs(t, gate.Verify(context.Background(), uuid.New(), "1234"), model.ErrAccountNotFound)
	assert.ErrorIs(t, gate.Set(context.Background(), uuid.New(), "1234", ""), model.ErrAccountNotFound)
}
