package handlers

import (
	"context"

	"pix-server/internal/protocol"
	"pix-server/internal/services"
	"pix-server/internal/session"
	"pix-server/internal/utils"
)

type AccountHandler struct {
	ledger   *services.Ledger
	sessions session.Store
}

func NewAccountHandler(ledger *services.Ledger, sessions session.Store) *AccountHandler {
	return &AccountHandler{ledger: ledger, sessions: sessions}
}

func (h *AccountHandler) Read(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	identity, err := currentIdentity(ctx)
	if err != nil {
		return protocol.Response{}, err
	}

	account, err := h.ledger.Read(ctx, identity)
	if err != nil {
		return protocol.Response{}, err
	}

	resp := protocol.Success(req.Operation, "Dados recuperados.")
	resp.Account = account.Response()
	return resp, nil
}

func (h *AccountHandler) Update(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	identity, err := currentIdentity(ctx)
	if err != nil {
		return protocol.Response{}, err
	}

	if _, err := h.ledger.Update(ctx, identity, req.Patch); err != nil {
		return protocol.Response{}, err
	}
	if req.Patch.IsEmpty() {
		return protocol.Success(req.Operation, "Nenhuma alteração solicitada."), nil
	}
	return protocol.Success(req.Operation, "Usuário atualizado com sucesso."), nil
}

// Delete removes the account and every session bound to it.
func (h *AccountHandler) Delete(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	identity, err := currentIdentity(ctx)
	if err != nil {
		return protocol.Response{}, err
	}

	if err := h.ledger.Delete(ctx, identity); err != nil {
		return protocol.Response{}, err
	}
	revoked := h.sessions.RevokeIdentity(identity)
	utils.LogInfo("AccountHandler", "Account %s deleted, %d sessions revoked", identity, revoked)

	return protocol.Success(req.Operation, "Usuário deletado com sucesso."), nil
}
