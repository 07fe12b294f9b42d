package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pix-server/internal/models"
)

func TestAccountInfoKey(t *testing.T) {
	if got := AccountInfoKey("111.111.111-11"); got != "account:info:111.111.111-11" {
		t.Fatalf("AccountInfoKey=%q", got)
	}
}

// Runs against a live server only when REDIS_ADDR is set.
func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewRedisCache(addr)
	defer c.Close()
	if err := c.Ping(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	account := &models.Account{
		CPF:        "999.999.999-99",
		Name:       "Cache",
		SecretHash: "hash",
		Balance:    decimal.RequireFromString("12.34"),
	}
	c.SetAccount(ctx, account)

	got, ok := c.GetAccount(ctx, account.CPF)
	if !ok {
		t.Fatal("expected a hit")
	}
	if !got.Balance.Equal(account.Balance) || got.SecretHash != "" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	c.InvalidateAccounts(ctx, account.CPF)
	if _, ok := c.GetAccount(ctx, account.CPF); ok {
		t.Fatal("expected a miss after invalidation")
	}
}
