package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey{}, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestWithTx_NoPool(t *testing.T) {
	called := false
	err := WithTx(context.Background(), nil, func(context.Context, pgx.Tx) error {
		called = true
		return nil
	})
	if err == nil {
		t.Error("expected error without a pool")
	}
	if called {
		t.Error("fn must not run without a transaction")
	}
}

func TestNewPool_InvalidURL(t *testing.T) {
	if _, err := NewPool(context.Background(), "://not a url", 0, 0); err == nil {
		t.Error("expected parse error")
	}
}
