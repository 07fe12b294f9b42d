package handlers

import (
	"context"

	"pix-server/internal/models"
	"pix-server/internal/protocol"
	"pix-server/internal/services"
)

type TransactionHandler struct {
	ledger *services.Ledger
}

func NewTransactionHandler(ledger *services.Ledger) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

func (h *TransactionHandler) Deposit(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	identity, err := currentIdentity(ctx)
	if err != nil {
		return protocol.Response{}, err
	}

	if _, err := h.ledger.Deposit(ctx, identity, req.Amount); err != nil {
		return protocol.Response{}, err
	}
	return protocol.Success(req.Operation, "Depósito realizado com sucesso."), nil
}

func (h *TransactionHandler) Transfer(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	identity, err := currentIdentity(ctx)
	if err != nil {
		return protocol.Response{}, err
	}

	if _, err := h.ledger.Transfer(ctx, identity, req.TargetCPF, req.Amount); err != nil {
		return protocol.Response{}, err
	}
	return protocol.Success(req.Operation, "Transação realizada com sucesso."), nil
}

func (h *TransactionHandler) History(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	identity, err := currentIdentity(ctx)
	if err != nil {
		return protocol.Response{}, err
	}

	entries, err := h.ledger.History(ctx, identity, req.From, req.To)
	if err != nil {
		return protocol.Response{}, err
	}

	list := make([]models.TransferResponse, 0, len(entries))
	for _, entry := range entries {
		list = append(list, entry.Response())
	}
	return protocol.Success(req.Operation, "Transações recuperadas com sucesso.").WithTransfers(list), nil
}
