package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"pix-server/internal/protocol"
	"pix-server/internal/utils"
)

const gatewayTimeout = 30 * time.Second

// gatewayRoutes maps HTTP paths to protocol operations.
var gatewayRoutes = map[string]string{
	"/usuario/criar":     protocol.OpCreateAccount,
	"/usuario/login":     protocol.OpLogin,
	"/usuario/logout":    protocol.OpLogout,
	"/usuario/ler":       protocol.OpReadAccount,
	"/usuario/atualizar": protocol.OpUpdateAccount,
	"/usuario/deletar":   protocol.OpDeleteAccount,
	"/depositar":         protocol.OpDeposit,
	"/transacao/criar":   protocol.OpCreateTransfer,
	"/transacao/ler":     protocol.OpReadTransfers,
	"/erro_servidor":     protocol.OpReportError,
}

// Gateway serves the dispatcher over HTTP: one POST per operation with the
// request fields as the JSON body. There is no handshake.
type Gateway struct {
	dispatcher *Dispatcher
}

func NewGateway(dispatcher *Dispatcher) *Gateway {
	return &Gateway{dispatcher: dispatcher}
}

// Operation reports the operation served at path.
func (g *Gateway) Operation(path string) (string, bool) {
	op, ok := gatewayRoutes[path]
	return op, ok
}

func (g *Gateway) Handle(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	path := string(ctx.Path())

	operation, ok := g.Operation(path)
	if !ok {
		g.write(ctx, fasthttp.StatusNotFound, protocol.Failure(protocol.OpUnknown, infoUnknownOp))
		return
	}
	if !ctx.IsPost() {
		ctx.Response.Header.Set("Allow", fasthttp.MethodPost)
		g.write(ctx, fasthttp.StatusMethodNotAllowed, protocol.Failure(operation, "Método não permitido."))
		return
	}

	utils.LogRequest(operation, ctx.RemoteAddr().String(), "")

	fields, err := decodeBody(ctx.PostBody())
	if err != nil {
		utils.LogWarning("Gateway", "Malformed body on %s: %v", path, err)
		g.write(ctx, fasthttp.StatusBadRequest, protocol.Failure(operation, "Corpo da requisição inválido."))
		return
	}
	if _, present := fields["token"]; !present {
		if token := bearerToken(ctx); token != "" {
			fields["token"] = token
		}
	}

	msg, err := protocol.NewMessage(operation, fields)
	if err != nil {
		g.write(ctx, fasthttp.StatusBadRequest, protocol.Failure(operation, "Corpo da requisição inválido."))
		return
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), gatewayTimeout)
	defer cancel()

	resp := g.dispatcher.Handle(reqCtx, msg)
	status := fasthttp.StatusOK
	if !resp.Status {
		status = fasthttp.StatusBadRequest
		if resp.Info == protocol.InfoInvalidSession {
			status = fasthttp.StatusUnauthorized
		}
	}
	g.write(ctx, status, resp)
	utils.LogDebug("Gateway", "%s answered %d in %v", path, status, time.Since(startTime))
}

func (g *Gateway) write(ctx *fasthttp.RequestCtx, status int, resp protocol.Response) {
	body, err := protocol.Encode(resp)
	if err != nil {
		utils.LogError("Gateway", "Encode response failed", err)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func decodeBody(body []byte) (map[string]any, error) {
	fields := make(map[string]any)
	if len(bytes.TrimSpace(body)) == 0 {
		return fields, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	return fields, nil
}

func bearerToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
