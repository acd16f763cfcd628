// Package pin implements the authorization gate for balance-debiting
// operations. Credentials are stored only as bcrypt hashes; the package never
// exposes or reconstructs a raw PIN.
package pin

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tillfold-dev/tillfold/internal/model"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// Accounts is the slice of account storage the gate needs.
type Accounts interface {
	GetAccount(ctx context.Context, id uuid.UUID) (model.Account, error)
	SetPINHash(ctx context.Context, id uuid.UUID, hash string) error
}

// Gate verifies and updates account PIN credentials.
type Gate struct {
	accounts Accounts
	cost     int
}

// NewGate creates a Gate. cost is the bcrypt work factor; values below the
// bcrypt minimum fall back to bcrypt.DefaultCost.
func NewGate(accounts Accounts, cost int) *Gate {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Gate{accounts: accounts, cost: cost}
}

// Set configures or changes an account's PIN. Initial setup requires no old
// PIN and fails with ErrPinAlreadySet if a credential exists. A change
// requires the current PIN and fails with ErrInvalidOldPin on mismatch.
func (g *Gate) Set(ctx context.Context, accountID uuid.UUID, newPIN, oldPIN string) error {
	if !pinPattern.MatchString(newPIN) {
		return model.ErrMalformedPin
	}

	acct, err := g.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}

	if acct.PINHash != "" {
		if oldPIN == "" {
			return model.ErrPinAlreadySet
		}
		if bcrypt.CompareHashAndPassword([]byte(acct.PINHash), []byte(oldPIN)) != nil {
			return model.ErrInvalidOldPin
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), g.cost)
	if err != nil {
		return fmt.Errorf("hashing PIN: %w", err)
	}
	return g.accounts.SetPINHash(ctx, accountID, string(hash))
}

// Verify checks candidate against the account's stored credential. It fails
// closed: a missing credential yields ErrPinNotConfigured, a mismatch
// ErrInvalidPin.
func (g *Gate) Verify(ctx context.Context, accountID uuid.UUID, candidate string) error {
	acct, err := g.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.PINHash == "" {
		return model.ErrPinNotConfigured
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PINHash), []byte(candidate)) != nil {
		return model.ErrInvalidPin
	}
	return nil
}

// Configured reports whether the account has a credential set.
func (g *Gate) Configured(ctx context.Context, accountID uuid.UUID) (bool, error) {
	acct, err := g.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	return acct.PINHash != "", nil
}
