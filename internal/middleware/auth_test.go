package middleware

import (
	"context"
	"errors"
	"testing"

	"pix-server/internal/protocol"
	"pix-server/internal/session"
)

func TestRequireSession(t *testing.T) {
	store := session.NewMemoryStore(nil, 0)
	token, _ := store.Issue("111.111.111-11")

	var seen string
	handler := RequireSession(store, func(ctx context.Context, req protocol.Request) (protocol.Response, error) {
		seen, _ = Identity(ctx)
		return protocol.Success(req.Operation, "ok"), nil
	})

	resp, err := handler(context.Background(), protocol.Request{Operation: protocol.OpReadAccount, Token: token})
	if err != nil || !resp.Status {
		t.Fatalf("resp=%+v err=%v", resp, err)
	}
	if seen != "111.111.111-11" {
		t.Fatalf("identity=%q", seen)
	}

	for _, bad := range []string{"", "unknown"} {
		seen = ""
		_, err := handler(context.Background(), protocol.Request{Operation: protocol.OpReadAccount, Token: bad})
		if !errors.Is(err, session.ErrNotFound) {
			t.Fatalf("token %q err=%v", bad, err)
		}
		if seen != "" {
			t.Fatal("next ran without a session")
		}
	}
}

func TestIdentityMissing(t *testing.T) {
	if _, ok := Identity(context.Background()); ok {
		t.Fatal("empty context has no identity")
	}
}
