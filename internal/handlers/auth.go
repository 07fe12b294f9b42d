package handlers

import (
	"context"

	"pix-server/internal/protocol"
	"pix-server/internal/services"
	"pix-server/internal/session"
	"pix-server/internal/utils"
)

type AuthHandler struct {
	ledger   *services.Ledger
	sessions session.Store
}

func NewAuthHandler(ledger *services.Ledger, sessions session.Store) *AuthHandler {
	return &AuthHandler{ledger: ledger, sessions: sessions}
}

// Connect answers a handshake that arrives after the connection is already
// established.
func (h *AuthHandler) Connect(_ context.Context, req protocol.Request) (protocol.Response, error) {
	return protocol.Response{}, &protocol.Violation{
		Operation: req.Operation,
		Info:      "Conexão já estabelecida.",
	}
}

func (h *AuthHandler) Register(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if _, err := h.ledger.Create(ctx, req.CPF, req.Name, req.Secret); err != nil {
		return protocol.Response{}, err
	}
	return protocol.Success(req.Operation, "Usuário criado com sucesso."), nil
}

func (h *AuthHandler) Login(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if err := h.ledger.Authenticate(ctx, req.CPF, req.Secret); err != nil {
		utils.LogWarning("AuthHandler", "Failed login for %s", req.CPF)
		return protocol.Response{}, err
	}

	token, err := h.sessions.Issue(req.CPF)
	if err != nil {
		return protocol.Response{}, err
	}

	utils.LogSuccess("AuthHandler", "Session opened for %s", req.CPF)
	resp := protocol.Success(req.Operation, "Login bem-sucedido.")
	resp.Token = token
	return resp, nil
}

func (h *AuthHandler) Logout(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if !h.sessions.Revoke(req.Token) {
		return protocol.Response{}, session.ErrNotFound
	}
	identity, _ := currentIdentity(ctx)
	utils.LogInfo("AuthHandler", "Session closed for %s", identity)
	return protocol.Success(req.Operation, "Logout realizado com sucesso."), nil
}
