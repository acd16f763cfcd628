package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillfold-dev/tillfold/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func movements(acct, other uuid.UUID) []model.Movement {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []model.Movement{
		{ID: uuid.New(), From: acct, To: acct, Amount: dec("100"), Kind: model.KindDeposit,
			Category: "deposit", CreatedAt: base},
		{ID: uuid.New(), From: acct, To: other, Amount: dec("30"), Kind: model.KindTransfer,
			Category: "food", Note: "lunch", CreatedAt: base.Add(time.Hour)},
		{ID: uuid.New(), From: other, To: acct, Amount: dec("15"), Kind: model.KindTransfer,
			Category: "transfer", CreatedAt: base.Add(2 * time.Hour)},
		{ID: uuid.New(), From: acct, To: acct, Amount: dec("20"), Kind: model.KindWithdraw,
			Category: "withdraw", CreatedAt: base.Add(3 * time.Hour)},
		{ID: uuid.New(), From: acct, To: other, Amount: dec("10"), Kind: model.KindTransfer,
			Category: "food", CreatedAt: base.Add(4 * time.Hour)},
	}
}

func TestBuild(t *testing.T) {
	acct := uuid.New()
	other := uuid.New()

	st := Build(acct, movements(acct, other), time.Time{}, time.Time{})
	require.Len(t, st.Lines, 5)
	assert.True(t, st.Credits.Equal(dec("115")))
	assert.True(t, st.Debits.Equal(dec("60")))
	assert.True(t, st.Net.Equal(dec("55")))

	assert.Equal(t, "in", st.Lines[0].Direction)
	assert.Equal(t, acct, st.Lines[0].Counterparty)
	assert.Equal(t, "out", st.Lines[1].Direction)
	assert.Equal(t, other, st.Lines[1].Counterparty)
	assert.Equal(t, "in", st.Lines[2].Direction)
	assert.Equal(t, other, st.Lines[2].Counterparty)
}

func TestBuild_DateRange(t *testing.T) {
	acct := uuid.New()
	other := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	st := Build(acct, movements(acct, other), base.Add(time.Hour), base.Add(3*time.Hour))
	require.Len(t, st.Lines, 3)
	assert.True(t, st.Credits.Equal(dec("15")))
	assert.True(t, st.Debits.Equal(dec("50")))
	assert.True(t, st.Net.Equal(dec("-35")))
}

func TestByCategory(t *testing.T) {
	acct := uuid.New()
	other := uuid.New()

	totals := ByCategory(Build(acct, movements(acct, other), time.Time{}, time.Time{}))
	require.Len(t, totals, 2)

	// Largest first; only outgoing lines count.
	assert.Equal(t, "food", totals[0].Category)
	assert.True(t, totals[0].Total.Equal(dec("40")))
	assert.Equal(t, 2, totals[0].Count)
	assert.Equal(t, "withdraw", totals[1].Category)
	assert.True(t, totals[1].Total.Equal(dec("20")))
}

func TestWriteCSV(t *testing.T) {
	acct := uuid.New()
	other := uuid.New()
	st := Build(acct, movements(acct, other), time.Time{}, time.Time{})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, st))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, Header, lines[0])
	assert.Contains(t, lines[1], "100.00")
	assert.Contains(t, lines[2], "lunch")
}
