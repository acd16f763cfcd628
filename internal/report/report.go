// Package report builds account statements and summaries from the movement
// ledger, and exports them as CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillfold-dev/tillfold/internal/model"
)

// Header is the CSV header for a statement export.
const Header = "movement_id,date,kind,direction,counterparty,amount,category,note"

const (
	numFields    = 8
	dateFormat   = "2006-01-02 15:04:05"
	colID        = 0
	colDate      = 1
	colKind      = 2
	colDirection = 3
	colCparty    = 4
	colAmount    = 5
	colCategory  = 6
	colNote      = 7
)

// Line is one statement row as seen from the statement holder's side.
type Line struct {
	Movement     model.Movement
	Direction    string // "in" or "out"
	Counterparty uuid.UUID
}

// Statement is an account's movement history over a period with totals.
type Statement struct {
	AccountID uuid.UUID
	From      time.Time // zero means unbounded
	To        time.Time
	Lines     []Line
	Credits   decimal.Decimal
	Debits    decimal.Decimal
	Net       decimal.Decimal
}

// Build assembles a statement from the account's movements, newest first.
// Deposits and incoming transfers count as credits; withdrawals and outgoing
// transfers as debits. Zero bounds leave the range open on that side.
func Build(accountID uuid.UUID, movements []model.Movement, from, to time.Time) Statement {
	st := Statement{
		AccountID: accountID,
		From:      from,
		To:        to,
		Credits:   decimal.Zero,
		Debits:    decimal.Zero,
	}

	for _, mv := range movements {
		if !from.IsZero() && mv.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && mv.CreatedAt.After(to) {
			continue
		}

		line := Line{Movement: mv}
		switch {
		case mv.Kind == model.KindDeposit:
			line.Direction = "in"
			line.Counterparty = accountID
			st.Credits = st.Credits.Add(mv.Amount)
		case mv.Kind == model.KindWithdraw:
			line.Direction = "out"
			line.Counterparty = accountID
			st.Debits = st.Debits.Add(mv.Amount)
		case mv.To == accountID:
			line.Direction = "in"
			line.Counterparty = mv.From
			st.Credits = st.Credits.Add(mv.Amount)
		default:
			line.Direction = "out"
			line.Counterparty = mv.To
			st.Debits = st.Debits.Add(mv.Amount)
		}
		st.Lines = append(st.Lines, line)
	}

	st.Net = st.Credits.Sub(st.Debits)
	return st
}

// CategoryTotal is one row of a spending summary.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// ByCategory totals the statement's outgoing lines per category, largest
// first. Incoming money is not spending and is excluded.
func ByCategory(st Statement) []CategoryTotal {
	totals := make(map[string]*CategoryTotal)
	for _, line := range st.Lines {
		if line.Direction != "out" {
			continue
		}
		category := line.Movement.Category
		if category == "" {
			category = "other"
		}
		ct, ok := totals[category]
		if !ok {
			ct = &CategoryTotal{Category: category, Total: decimal.Zero}
			totals[category] = ct
		}
		ct.Total = ct.Total.Add(line.Movement.Amount)
		ct.Count++
	}

	out := make([]CategoryTotal, 0, len(totals))
	for _, ct := range totals {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// WriteCSV writes the statement's lines as CSV (including header).
func WriteCSV(w io.Writer, st Statement) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, line := range st.Lines {
		if err := cw.Write(MarshalLine(line)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalLine converts a Line to a CSV row ([]string).
func MarshalLine(line Line) []string {
	mv := line.Movement
	row := make([]string, numFields)
	row[colID] = mv.ID.String()
	row[colDate] = mv.CreatedAt.Format(dateFormat)
	row[colKind] = string(mv.Kind)
	row[colDirection] = line.Direction
	row[colCparty] = line.Counterparty.String()
	row[colAmount] = mv.Amount.StringFixed(2)
	row[colCategory] = mv.Category
	row[colNote] = mv.Note
	return row
}
