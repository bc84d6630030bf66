package store

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/erazemk/garderoba/internal/db"
)

func TestGetJWTSecretIsStable(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("GetJWTSecret: %v", err)
	}
	if raw, err := hex.DecodeString(secret); err != nil || len(raw) != 32 {
		t.Fatalf("expected 32 hex-encoded bytes, got %q", secret)
	}

	again, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("GetJWTSecret: %v", err)
	}
	if again != secret {
		t.Errorf("expected stored secret %q, got %q", secret, again)
	}
}

func TestGetJWTSecretInTransaction(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// A rolled back transaction leaves no secret behind.
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	discarded, err := GetJWTSecret(ctx, tx)
	if err != nil {
		t.Fatalf("GetJWTSecret in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	tx, err = database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	committed, err := GetJWTSecret(ctx, tx)
	if err != nil {
		t.Fatalf("GetJWTSecret in tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("GetJWTSecret: %v", err)
	}
	if got != committed {
		t.Errorf("expected committed secret %q, got %q", committed, got)
	}
	if got == discarded {
		t.Error("rolled back secret was kept")
	}
}
