package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"pix-server/internal/utils"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Gateway serves protocol operations over HTTP.
type Gateway interface {
	Operation(path string) (string, bool)
	Handle(ctx *fasthttp.RequestCtx)
}

type AdminOptions struct {
	Addr     string
	Storage  Pinger
	Sessions func() int
	Gateway  Gateway
}

// AdminServer exposes health, stats and metrics, and optionally the HTTP
// gateway, on a separate port.
type AdminServer struct {
	opts    AdminOptions
	server  *Server
	metrics fasthttp.RequestHandler
	http    *fasthttp.Server
}

func NewAdminServer(opts AdminOptions, server *Server, metrics *Metrics) *AdminServer {
	a := &AdminServer{opts: opts, server: server}
	if metrics != nil {
		a.metrics = fasthttpadaptor.NewFastHTTPHandler(
			promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		)
	}
	a.http = &fasthttp.Server{
		Handler:      a.Handler,
		Name:         "pix-admin",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return a
}

func (a *AdminServer) Handler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())

	switch path {
	case "/health":
		a.health(ctx)
	case "/stats":
		a.stats(ctx)
	case "/metrics":
		if a.metrics == nil {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		a.metrics(ctx)
	default:
		if a.opts.Gateway != nil {
			if _, ok := a.opts.Gateway.Operation(path); ok {
				a.opts.Gateway.Handle(ctx)
				return
			}
		}
		writeJSON(ctx, fasthttp.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (a *AdminServer) health(ctx *fasthttp.RequestCtx) {
	body := map[string]string{
		"status":  "ok",
		"storage": "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	status := fasthttp.StatusOK

	if a.opts.Storage != nil {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.opts.Storage.Ping(pingCtx); err != nil {
			utils.LogWarning("Admin", "Storage ping failed: %v", err)
			body["status"] = "degraded"
			body["storage"] = err.Error()
			status = fasthttp.StatusServiceUnavailable
		}
	}
	writeJSON(ctx, status, body)
}

func (a *AdminServer) stats(ctx *fasthttp.RequestCtx) {
	body := map[string]any{}
	if a.server != nil {
		body["server"] = a.server.Stats()
	}
	if a.opts.Sessions != nil {
		body["sessions"] = a.opts.Sessions()
	}
	writeJSON(ctx, fasthttp.StatusOK, body)
}

func (a *AdminServer) ListenAndServe() error {
	utils.LogSuccess("Admin", "Admin HTTP on %s", a.opts.Addr)
	return a.http.ListenAndServe(a.opts.Addr)
}

func (a *AdminServer) Shutdown(ctx context.Context) error {
	return a.http.ShutdownWithContext(ctx)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(body); err != nil {
		utils.LogError("Admin", "Encode response failed", err)
	}
}
