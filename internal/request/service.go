// Package request implements the payment request workflow: one account asks
// another to pay, and the receiver accepts (moving money) or declines.
package request

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillfold-dev/tillfold/internal/engine"
	"github.com/tillfold-dev/tillfold/internal/model"
	"github.com/tillfold-dev/tillfold/internal/store"
)

// Storage is the slice of the store the request workflow needs.
type Storage interface {
	store.AccountStore
	store.RequestStore
}

// Transferer executes the funded side of an accepted request.
type Transferer interface {
	Transfer(ctx context.Context, p engine.TransferParams) (engine.MovementResult, error)
}

// ShareSettler marks a group expense share as settled via a transfer. The
// expense workflow provides this; requests spawned by an expense route their
// acceptance through it so the member state and the movement stay consistent.
type ShareSettler interface {
	SettleShare(ctx context.Context, expenseID, accountID uuid.UUID, transfer func() error) error
}

// Service mediates the request lifecycle on top of the ledger engine.
type Service struct {
	store    Storage
	engine   Transferer
	settler  ShareSettler
	log      *slog.Logger
	mu       sync.Mutex
	inflight map[uuid.UUID]*sync.Mutex
}

// New creates a Service. The settler may be set later with SetSettler to
// break the construction cycle with the expense workflow.
func New(storage Storage, eng Transferer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:    storage,
		engine:   eng,
		log:      log,
		inflight: make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetSettler wires the expense workflow in after construction.
func (s *Service) SetSettler(settler ShareSettler) {
	s.settler = settler
}

// requestLock serializes resolution attempts on a single request.
func (s *Service) requestLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.inflight[id]
	if !ok {
		m = &sync.Mutex{}
		s.inflight[id] = m
	}
	return m
}

// CreateParams describe a new payment request.
type CreateParams struct {
	Sender         uuid.UUID
	ReceiverNumber string
	Amount         decimal.Decimal
	Note           string
}

// Create records a pending request from Sender to the account holding
// ReceiverNumber. No money moves.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.PaymentRequest, error) {
	if !p.Amount.IsPositive() {
		return model.PaymentRequest{}, model.ErrInvalidAmount
	}
	if _, err := s.store.GetAccount(ctx, p.Sender); err != nil {
		return model.PaymentRequest{}, err
	}
	receiver, err := s.store.GetAccountByNumber(ctx, p.ReceiverNumber)
	if err != nil {
		return model.PaymentRequest{}, err
	}
	if receiver.ID == p.Sender {
		return model.PaymentRequest{}, model.ErrSelfRequest
	}

	req, err := s.store.CreateRequest(ctx, model.PaymentRequest{
		Sender:   p.Sender,
		Receiver: receiver.ID,
		Amount:   p.Amount,
		Note:     p.Note,
	})
	if err != nil {
		return model.PaymentRequest{}, err
	}
	s.log.Info("request created",
		"request", req.ID, "sender", p.Sender, "receiver", receiver.ID, "amount", p.Amount)
	return req, nil
}

// Get returns a request visible to either party.
func (s *Service) Get(ctx context.Context, requestID, acting uuid.UUID) (model.PaymentRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return model.PaymentRequest{}, err
	}
	if req.Sender != acting && req.Receiver != acting {
		return model.PaymentRequest{}, model.ErrNotAuthorized
	}
	return req, nil
}

// ListForAccount returns every request the account sent or received,
// newest first.
func (s *Service) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]model.PaymentRequest, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.ListRequestsForAccount(ctx, accountID)
}

// Accept pays a pending request. Only the receiver may accept; the transfer
// runs first and the request flips to accepted only if it succeeds, so a
// failed transfer leaves the request pending and retryable.
func (s *Service) Accept(ctx context.Context, requestID, acting uuid.UUID, pin string) (model.PaymentRequest, engine.MovementResult, error) {
	lock := s.requestLock(requestID)
	lock.Lock()
	defer lock.Unlock()

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return model.PaymentRequest{}, engine.MovementResult{}, err
	}
	if req.Receiver != acting {
		return model.PaymentRequest{}, engine.MovementResult{}, model.ErrNotAuthorized
	}
	if req.Status.Terminal() {
		return model.PaymentRequest{}, engine.MovementResult{}, model.ErrRequestResolved
	}

	var result engine.MovementResult
	transfer := func() error {
		var terr error
		result, terr = s.engine.Transfer(ctx, engine.TransferParams{
			From:      req.Receiver,
			To:        req.Sender,
			Amount:    req.Amount,
			PIN:       pin,
			Note:      req.Note,
			RequestID: &req.ID,
			ExpenseID: req.ExpenseID,
		})
		return terr
	}

	if req.ExpenseID != nil && s.settler != nil {
		// Route through the expense workflow so the member flips to paid in
		// step with the transfer.
		err = s.settler.SettleShare(ctx, *req.ExpenseID, req.Receiver, transfer)
	} else {
		err = transfer()
	}
	if err != nil {
		return model.PaymentRequest{}, engine.MovementResult{}, err
	}

	resolved, err := s.store.ResolveRequest(ctx, requestID, model.RequestAccepted)
	if err != nil {
		// The transfer landed; surface the inconsistency loudly.
		s.log.Error("request resolution failed after transfer",
			"request", requestID, "movement", result.Movement.ID, "error", err)
		return model.PaymentRequest{}, engine.MovementResult{}, err
	}
	s.log.Info("request accepted", "request", requestID, "movement", result.Movement.ID)
	return resolved, result, nil
}

// Decline rejects a pending request. Receiver only; no money moves.
func (s *Service) Decline(ctx context.Context, requestID, acting uuid.UUID) (model.PaymentRequest, error) {
	lock := s.requestLock(requestID)
	lock.Lock()
	defer lock.Unlock()

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return model.PaymentRequest{}, err
	}
	if req.Receiver != acting {
		return model.PaymentRequest{}, model.ErrNotAuthorized
	}

	resolved, err := s.store.ResolveRequest(ctx, requestID, model.RequestDeclined)
	if err != nil {
		return model.PaymentRequest{}, err
	}
	s.log.Info("request declined", "request", requestID)
	return resolved, nil
}
