// Package sqlite implements the storage contracts over a single SQLite file.
//
// One file backs every aggregate so movements, balances, and workflow status
// changes share the same transaction and visibility boundaries. Bundled
// migrations are applied at Open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/tillfold-dev/tillfold/internal/model"
	"github.com/tillfold-dev/tillfold/internal/store"
	"github.com/tillfold-dev/tillfold/internal/store/sqlite/migrations"
)

// Store implements store.Store over SQLite.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the store at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single writer connection sidesteps SQLITE_BUSY under concurrent commits.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies each embedded .sql file at most once, in lexical order.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var applied int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}

		ddl, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(ddl)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().UnixMilli()); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// AccountStore implementation -------------------------------------------------

const accountColumns = `id, number, first_name, last_name, email, balance, pin_hash, created_at`

func (s *Store) CreateAccount(ctx context.Context, acct model.Account) (model.Account, error) {
	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID.String(), acct.Number, acct.FirstName, acct.LastName, acct.Email,
		acct.Balance.String(), acct.PINHash, toMillis(acct.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return model.Account{}, model.ErrDuplicateNumber
		}
		return model.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return acct, nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id.String())
	return scanAccount(row)
}

func (s *Store) GetAccountByNumber(ctx context.Context, number string) (model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE number = ?`, number)
	return scanAccount(row)
}

func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var result []model.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, acct)
	}
	return result, rows.Err()
}

func (s *Store) SetPINHash(ctx context.Context, id uuid.UUID, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET pin_hash = ? WHERE id = ?`, hash, id.String())
	if err != nil {
		return fmt.Errorf("set pin hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ApplyMovement(ctx context.Context, mv model.Movement, deltas []store.BalanceDelta) (model.Movement, error) {
	if mv.ID == uuid.Nil {
		mv.ID = uuid.New()
	}
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Movement{}, fmt.Errorf("begin movement tx: %w", err)
	}
	defer tx.Rollback()

	for _, d := range deltas {
		var raw string
		err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, d.AccountID.String()).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return model.Movement{}, model.ErrAccountNotFound
		}
		if err != nil {
			return model.Movement{}, fmt.Errorf("read balance: %w", err)
		}

		balance, err := decimal.NewFromString(raw)
		if err != nil {
			return model.Movement{}, fmt.Errorf("parse balance %q: %w", raw, err)
		}
		balance = balance.Add(d.Delta)
		if balance.IsNegative() {
			return model.Movement{}, model.ErrInsufficientFunds
		}

		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`,
			balance.String(), d.AccountID.String()); err != nil {
			return model.Movement{}, fmt.Errorf("update balance: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO movements
		(id, from_id, to_id, amount, kind, status, note, category, request_id, expense_id, client_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mv.ID.String(), mv.From.String(), mv.To.String(), mv.Amount.String(),
		string(mv.Kind), string(mv.Status), mv.Note, mv.Category,
		nullUUID(mv.RequestID), nullUUID(mv.ExpenseID), nullString(mv.ClientRef),
		toMillis(mv.CreatedAt))
	if err != nil {
		return model.Movement{}, fmt.Errorf("insert movement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Movement{}, fmt.Errorf("commit movement: %w", err)
	}
	return mv, nil
}

// LedgerStore implementation --------------------------------------------------

const movementColumns = `id, from_id, to_id, amount, kind, status, note, category, request_id, expense_id, client_ref, created_at`

func (s *Store) GetMovement(ctx context.Context, id uuid.UUID) (model.Movement, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+movementColumns+` FROM movements WHERE id = ?`, id.String())
	return scanMovement(row)
}

func (s *Store) ListMovements(ctx context.Context, accountID uuid.UUID) ([]model.Movement, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+movementColumns+` FROM movements
		WHERE from_id = ? OR to_id = ? ORDER BY rowid DESC`,
		accountID.String(), accountID.String())
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var result []model.Movement
	for rows.Next() {
		mv, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, mv)
	}
	return result, rows.Err()
}

func (s *Store) GetMovementByClientRef(ctx context.Context, ref string) (model.Movement, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+movementColumns+` FROM movements WHERE client_ref = ?`, ref)
	return scanMovement(row)
}

func (s *Store) AnnotateMovement(ctx context.Context, id uuid.UUID, note string) (model.Movement, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE movements SET note = ? WHERE id = ?`, note, id.String())
	if err != nil {
		return model.Movement{}, fmt.Errorf("annotate movement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Movement{}, err
	}
	if n == 0 {
		return model.Movement{}, model.ErrMovementNotFound
	}
	return s.GetMovement(ctx, id)
}

// RequestStore implementation -------------------------------------------------

const requestColumns = `id, sender, receiver, amount, status, note, expense_id, created_at, updated_at`

func (s *Store) CreateRequest(ctx context.Context, r model.PaymentRequest) (model.PaymentRequest, error) {
	prepareRequest(&r)
	if err := insertRequest(ctx, s.db, r); err != nil {
		return model.PaymentRequest{}, err
	}
	return r, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func prepareRequest(r *model.PaymentRequest) {
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
}

func insertRequest(ctx context.Context, db execer, r model.PaymentRequest) error {
	_, err := db.ExecContext(ctx, `INSERT INTO requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Sender.String(), r.Receiver.String(), r.Amount.String(),
		string(r.Status), r.Note, nullUUID(r.ExpenseID),
		toMillis(r.CreatedAt), toMillis(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id uuid.UUID) (model.PaymentRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id.String())
	return scanRequest(row)
}

func (s *Store) ListRequestsForAccount(ctx context.Context, accountID uuid.UUID) ([]model.PaymentRequest, error) {
	return s.listRequests(ctx, `SELECT `+requestColumns+` FROM requests
		WHERE sender = ? OR receiver = ? ORDER BY rowid DESC`,
		accountID.String(), accountID.String())
}

func (s *Store) ListRequestsForExpense(ctx context.Context, expenseID uuid.UUID) ([]model.PaymentRequest, error) {
	return s.listRequests(ctx, `SELECT `+requestColumns+` FROM requests
		WHERE expense_id = ? ORDER BY rowid DESC`, expenseID.String())
}

func (s *Store) listRequests(ctx context.Context, query string, args ...any) ([]model.PaymentRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var result []model.PaymentRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) ResolveRequest(ctx context.Context, id uuid.UUID, to model.RequestStatus) (model.PaymentRequest, error) {
	if !model.RequestPending.CanTransition(to) {
		return model.PaymentRequest{}, model.ErrRequestResolved
	}

	res, err := s.db.ExecContext(ctx, `UPDATE requests SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC().UnixMilli(), id.String(), string(model.RequestPending))
	if err != nil {
		return model.PaymentRequest{}, fmt.Errorf("resolve request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.PaymentRequest{}, err
	}
	if n == 0 {
		// Lost the CAS: either absent or already resolved.
		if _, err := s.GetRequest(ctx, id); err != nil {
			return model.PaymentRequest{}, err
		}
		return model.PaymentRequest{}, model.ErrRequestResolved
	}
	return s.GetRequest(ctx, id)
}

// ExpenseStore implementation -------------------------------------------------

const expenseColumns = `id, creator, title, total_amount, split_method, category, status, created_at, updated_at`

func (s *Store) CreateExpense(ctx context.Context, e model.GroupExpense, requests []model.PaymentRequest) (model.GroupExpense, error) {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.GroupExpense{}, fmt.Errorf("begin expense tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO expenses (`+expenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Creator.String(), e.Title, e.TotalAmount.String(),
		string(e.SplitMethod), e.Category, string(e.Status),
		toMillis(e.CreatedAt), toMillis(e.UpdatedAt))
	if err != nil {
		return model.GroupExpense{}, fmt.Errorf("insert expense: %w", err)
	}

	for i, m := range e.Members {
		_, err = tx.ExecContext(ctx, `INSERT INTO expense_members (expense_id, account_id, owed, status, position)
			VALUES (?, ?, ?, ?, ?)`,
			e.ID.String(), m.AccountID.String(), m.Owed.String(), string(m.Status), i)
		if err != nil {
			return model.GroupExpense{}, fmt.Errorf("insert member: %w", err)
		}
	}

	for i := range requests {
		requests[i].ExpenseID = &e.ID
		prepareRequest(&requests[i])
		if err := insertRequest(ctx, tx, requests[i]); err != nil {
			return model.GroupExpense{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return model.GroupExpense{}, fmt.Errorf("commit expense: %w", err)
	}
	return e, nil
}

func (s *Store) GetExpense(ctx context.Context, id uuid.UUID) (model.GroupExpense, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id.String())
	e, err := scanExpense(row)
	if err != nil {
		return model.GroupExpense{}, err
	}
	e.Members, err = s.loadMembers(ctx, id)
	if err != nil {
		return model.GroupExpense{}, err
	}
	return e, nil
}

func (s *Store) loadMembers(ctx context.Context, expenseID uuid.UUID) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id, owed, status FROM expense_members
		WHERE expense_id = ? ORDER BY position`, expenseID.String())
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var rawID, rawOwed, rawStatus string
		if err := rows.Scan(&rawID, &rawOwed, &rawStatus); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		accountID, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse member id %q: %w", rawID, err)
		}
		owed, err := decimal.NewFromString(rawOwed)
		if err != nil {
			return nil, fmt.Errorf("parse member owed %q: %w", rawOwed, err)
		}
		members = append(members, model.Member{
			AccountID: accountID,
			Owed:      owed,
			Status:    model.MemberStatus(rawStatus),
		})
	}
	return members, rows.Err()
}

func (s *Store) ListExpensesForAccount(ctx context.Context, accountID uuid.UUID) ([]model.GroupExpense, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE creator = ? OR id IN (SELECT expense_id FROM expense_members WHERE account_id = ?)
		ORDER BY rowid DESC`,
		accountID.String(), accountID.String())
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var result []model.GroupExpense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		result[i].Members, err = s.loadMembers(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) MarkMemberPaid(ctx context.Context, expenseID, accountID uuid.UUID) (model.GroupExpense, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.GroupExpense{}, fmt.Errorf("begin settle tx: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM expenses WHERE id = ?`, expenseID.String()).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GroupExpense{}, model.ErrExpenseNotFound
	}
	if err != nil {
		return model.GroupExpense{}, fmt.Errorf("read expense status: %w", err)
	}
	if model.ExpenseStatus(status) != model.ExpenseActive {
		return model.GroupExpense{}, model.ErrExpenseNotActive
	}

	res, err := tx.ExecContext(ctx, `UPDATE expense_members SET status = ?
		WHERE expense_id = ? AND account_id = ? AND status = ?`,
		string(model.MemberPaid), expenseID.String(), accountID.String(), string(model.MemberPending))
	if err != nil {
		return model.GroupExpense{}, fmt.Errorf("settle member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.GroupExpense{}, err
	}
	if n == 0 {
		var exists int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM expense_members WHERE expense_id = ? AND account_id = ?`,
			expenseID.String(), accountID.String()).Scan(&exists)
		if err != nil {
			return model.GroupExpense{}, fmt.Errorf("check membership: %w", err)
		}
		if exists == 0 {
			return model.GroupExpense{}, model.ErrNotAMember
		}
		return model.GroupExpense{}, model.ErrMemberPaid
	}

	var pending int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM expense_members WHERE expense_id = ? AND status = ?`,
		expenseID.String(), string(model.MemberPending)).Scan(&pending)
	if err != nil {
		return model.GroupExpense{}, fmt.Errorf("count pending members: %w", err)
	}

	newStatus := model.ExpenseActive
	if pending == 0 {
		newStatus = model.ExpenseCompleted
	}
	if _, err := tx.ExecContext(ctx, `UPDATE expenses SET status = ?, updated_at = ? WHERE id = ?`,
		string(newStatus), time.Now().UTC().UnixMilli(), expenseID.String()); err != nil {
		return model.GroupExpense{}, fmt.Errorf("update expense status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.GroupExpense{}, fmt.Errorf("commit settle: %w", err)
	}
	return s.GetExpense(ctx, expenseID)
}

func (s *Store) SetExpenseStatus(ctx context.Context, id uuid.UUID, from, to model.ExpenseStatus) (model.GroupExpense, error) {
	if !from.CanTransition(to) {
		return model.GroupExpense{}, model.ErrExpenseNotActive
	}

	res, err := s.db.ExecContext(ctx, `UPDATE expenses SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC().UnixMilli(), id.String(), string(from))
	if err != nil {
		return model.GroupExpense{}, fmt.Errorf("set expense status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.GroupExpense{}, err
	}
	if n == 0 {
		if _, err := s.GetExpense(ctx, id); err != nil {
			return model.GroupExpense{}, err
		}
		return model.GroupExpense{}, model.ErrExpenseNotActive
	}
	return s.GetExpense(ctx, id)
}

// Row scanning ----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (model.Account, error) {
	var (
		rawID, number, first, last, email, rawBalance, pinHash string
		createdAt                                              int64
	)
	err := row.Scan(&rawID, &number, &first, &last, &email, &rawBalance, &pinHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, model.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("scan account: %w", err)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return model.Account{}, fmt.Errorf("parse account id %q: %w", rawID, err)
	}
	balance, err := decimal.NewFromString(rawBalance)
	if err != nil {
		return model.Account{}, fmt.Errorf("parse balance %q: %w", rawBalance, err)
	}

	return model.Account{
		ID:        id,
		Number:    number,
		FirstName: first,
		LastName:  last,
		Email:     email,
		Balance:   balance,
		PINHash:   pinHash,
		CreatedAt: fromMillis(createdAt),
	}, nil
}

func scanMovement(row rowScanner) (model.Movement, error) {
	var (
		rawID, rawFrom, rawTo, rawAmount, kind, status, note, category string
		requestID, expenseID, clientRef                                sql.NullString
		createdAt                                                      int64
	)
	err := row.Scan(&rawID, &rawFrom, &rawTo, &rawAmount, &kind, &status, &note, &category,
		&requestID, &expenseID, &clientRef, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Movement{}, model.ErrMovementNotFound
	}
	if err != nil {
		return model.Movement{}, fmt.Errorf("scan movement: %w", err)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return model.Movement{}, fmt.Errorf("parse movement id %q: %w", rawID, err)
	}
	from, err := uuid.Parse(rawFrom)
	if err != nil {
		return model.Movement{}, fmt.Errorf("parse from id %q: %w", rawFrom, err)
	}
	to, err := uuid.Parse(rawTo)
	if err != nil {
		return model.Movement{}, fmt.Errorf("parse to id %q: %w", rawTo, err)
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return model.Movement{}, fmt.Errorf("parse amount %q: %w", rawAmount, err)
	}

	mv := model.Movement{
		ID:        id,
		From:      from,
		To:        to,
		Amount:    amount,
		Kind:      model.MovementKind(kind),
		Status:    model.MovementStatus(status),
		Note:      note,
		Category:  category,
		CreatedAt: fromMillis(createdAt),
	}
	if clientRef.Valid {
		mv.ClientRef = clientRef.String
	}
	if mv.RequestID, err = parseNullUUID(requestID); err != nil {
		return model.Movement{}, err
	}
	if mv.ExpenseID, err = parseNullUUID(expenseID); err != nil {
		return model.Movement{}, err
	}
	return mv, nil
}

func scanRequest(row rowScanner) (model.PaymentRequest, error) {
	var (
		rawID, rawSender, rawReceiver, rawAmount, status, note string
		expenseID                                              sql.NullString
		createdAt, updatedAt                                   int64
	)
	err := row.Scan(&rawID, &rawSender, &rawReceiver, &rawAmount, &status, &note,
		&expenseID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PaymentRequest{}, model.ErrRequestNotFound
	}
	if err != nil {
		return model.PaymentRequest{}, fmt.Errorf("scan request: %w", err)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return model.PaymentRequest{}, fmt.Errorf("parse request id %q: %w", rawID, err)
	}
	sender, err := uuid.Parse(rawSender)
	if err != nil {
		return model.PaymentRequest{}, fmt.Errorf("parse sender id %q: %w", rawSender, err)
	}
	receiver, err := uuid.Parse(rawReceiver)
	if err != nil {
		return model.PaymentRequest{}, fmt.Errorf("parse receiver id %q: %w", rawReceiver, err)
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return model.PaymentRequest{}, fmt.Errorf("parse amount %q: %w", rawAmount, err)
	}

	r := model.PaymentRequest{
		ID:        id,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		Status:    model.RequestStatus(status),
		Note:      note,
		CreatedAt: fromMillis(createdAt),
		UpdatedAt: fromMillis(updatedAt),
	}
	if r.ExpenseID, err = parseNullUUID(expenseID); err != nil {
		return model.PaymentRequest{}, err
	}
	return r, nil
}

func scanExpense(row rowScanner) (model.GroupExpense, error) {
	var (
		rawID, rawCreator, title, rawTotal, method, category, status string
		createdAt, updatedAt                                         int64
	)
	err := row.Scan(&rawID, &rawCreator, &title, &rawTotal, &method, &category, &status,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GroupExpense{}, model.ErrExpenseNotFound
	}
	if err != nil {
		return model.GroupExpense{}, fmt.Errorf("scan expense: %w", err)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return model.GroupExpense{}, fmt.Errorf("parse expense id %q: %w", rawID, err)
	}
	creator, err := uuid.Parse(rawCreator)
	if err != nil {
		return model.GroupExpense{}, fmt.Errorf("parse creator id %q: %w", rawCreator, err)
	}
	total, err := decimal.NewFromString(rawTotal)
	if err != nil {
		return model.GroupExpense{}, fmt.Errorf("parse total %q: %w", rawTotal, err)
	}

	return model.GroupExpense{
		ID:          id,
		Creator:     creator,
		Title:       title,
		TotalAmount: total,
		SplitMethod: model.SplitMethod(method),
		Category:    category,
		Status:      model.ExpenseStatus(status),
		CreatedAt:   fromMillis(createdAt),
		UpdatedAt:   fromMillis(updatedAt),
	}, nil
}

func parseNullUUID(v sql.NullString) (*uuid.UUID, error) {
	if !v.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(v.String)
	if err != nil {
		return nil, fmt.Errorf("parse uuid %q: %w", v.String, err)
	}
	return &id, nil
}
