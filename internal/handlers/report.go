package handlers

import (
	"context"

	"pix-server/internal/protocol"
	"pix-server/internal/utils"
)

// ReportError records an error a client observed in one of our responses.
func ReportError(_ context.Context, req protocol.Request) (protocol.Response, error) {
	utils.LogWarning("ClientReport", "Client reported a problem with %q: %s",
		req.ReportedOperation, utils.Redact(req.ReportedInfo))
	return protocol.Success(req.Operation, "Erro logado pelo servidor."), nil
}
