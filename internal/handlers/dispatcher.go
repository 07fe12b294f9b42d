package handlers

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"pix-server/internal/middleware"
	"pix-server/internal/protocol"
	"pix-server/internal/repository"
	"pix-server/internal/services"
	"pix-server/internal/session"
	"pix-server/internal/utils"
)

const infoUnknownOp = "Operação não reconhecida."

type Options struct {
	HistoryMaxDays int
}

// Dispatcher routes validated requests to their handlers and turns every
// outcome into a response envelope.
type Dispatcher struct {
	routes         map[string]middleware.Handler
	historyMaxDays int
}

func NewDispatcher(ledger *services.Ledger, sessions session.Store, opts Options) *Dispatcher {
	auth := NewAuthHandler(ledger, sessions)
	accounts := NewAccountHandler(ledger, sessions)
	transfers := NewTransactionHandler(ledger)

	secured := func(h middleware.Handler) middleware.Handler {
		return middleware.RequireSession(sessions, h)
	}

	d := &Dispatcher{
		historyMaxDays: opts.HistoryMaxDays,
		routes: map[string]middleware.Handler{
			protocol.OpConnect:        auth.Connect,
			protocol.OpCreateAccount:  auth.Register,
			protocol.OpLogin:          auth.Login,
			protocol.OpLogout:         secured(auth.Logout),
			protocol.OpReadAccount:    secured(accounts.Read),
			protocol.OpUpdateAccount:  secured(accounts.Update),
			protocol.OpDeleteAccount:  secured(accounts.Delete),
			protocol.OpDeposit:        secured(transfers.Deposit),
			protocol.OpCreateTransfer: secured(transfers.Transfer),
			protocol.OpReadTransfers:  secured(transfers.History),
			protocol.OpReportError:    ReportError,
		},
	}

	utils.LogSuccess("Dispatcher", "Registered %d operations", len(d.routes))
	return d
}

// Handle validates a decoded message and dispatches it. Protocol violations
// come back as failure envelopes.
func (d *Dispatcher) Handle(ctx context.Context, msg protocol.Message) protocol.Response {
	req, err := protocol.Validate(msg)
	if err != nil {
		return d.failure(msg.Operation, err)
	}
	return d.Dispatch(ctx, req)
}

// Dispatch runs the handler for req. It never panics and never returns a
// response without an operation echo.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.Request) (resp protocol.Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			ref := reference()
			utils.LogError("Dispatcher", fmt.Sprintf("Panic in %s [ref %s]: %v\n%s", req.Operation, ref, r, debug.Stack()), nil)
			resp = protocol.Failure(req.Operation, "Erro interno no servidor (ref "+ref+").")
		}
		utils.LogResponse(req.Operation, resp.Status, time.Since(start))
	}()

	handler, ok := d.routes[req.Operation]
	if !ok {
		return protocol.Failure(protocol.OpUnknown, infoUnknownOp)
	}

	resp, err := handler(ctx, req)
	if err != nil {
		return d.failure(req.Operation, err)
	}
	if resp.Operation == "" {
		resp.Operation = req.Operation
	}
	return resp
}

// failure maps an error to the client-facing envelope. Unexpected errors
// get a reference that is also written to the log.
func (d *Dispatcher) failure(operation string, err error) protocol.Response {
	var violation *protocol.Violation
	switch {
	case errors.As(err, &violation):
		return protocol.Failure(violation.Operation, violation.Info)
	case errors.Is(err, session.ErrNotFound):
		return protocol.Failure(operation, protocol.InfoInvalidSession)
	case errors.Is(err, services.ErrInvalidCredentials):
		return protocol.Failure(operation, "CPF ou senha inválidos.")
	case errors.Is(err, repository.ErrDuplicateIdentity):
		return protocol.Failure(operation, "Este CPF já está cadastrado.")
	case errors.Is(err, repository.ErrAccountNotFound):
		return protocol.Failure(operation, "Usuário não encontrado.")
	case errors.Is(err, repository.ErrInsufficientFunds):
		return protocol.Failure(operation, "Saldo insuficiente.")
	case errors.Is(err, services.ErrSelfTransfer):
		return protocol.Failure(operation, "Não é possível transferir para a própria conta.")
	case errors.Is(err, services.ErrInvalidAmount):
		return protocol.Failure(operation, "O valor deve ser positivo.")
	case errors.Is(err, services.ErrInvalidRange):
		return protocol.Failure(operation, fmt.Sprintf(
			"Período inválido: a data inicial não pode ser maior que a final e o período máximo é de %d dias.",
			d.historyMaxDays))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return protocol.Failure(operation, "Operação cancelada pelo servidor.")
	}

	ref := reference()
	utils.LogError("Dispatcher", fmt.Sprintf("%s failed [ref %s]", operation, ref), err)
	return protocol.Failure(operation, "Erro interno no servidor (ref "+ref+").")
}

func reference() string {
	return uuid.NewString()[:8]
}

func currentIdentity(ctx context.Context) (string, error) {
	identity, ok := middleware.Identity(ctx)
	if !ok {
		return "", session.ErrNotFound
	}
	return identity, nil
}
