package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/puddle/v2"
)

func TestIsNoRows(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "no rows", err: pgx.ErrNoRows, want: true},
		{name: "wrapped no rows", err: fmt.Errorf("lookup token: %w", pgx.ErrNoRows), want: true},
		{name: "closed pool", err: puddle.ErrClosedPool, want: false},
		{name: "other", err: errors.New("boom"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isNoRows(tc.err); got != tc.want {
				t.Fatalf("isNoRows(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestPostgresRevocationStoreRejectsBadDSN(t *testing.T) {
	for _, dsn := range []string{"", "postgres://%zz"} {
		if _, err := NewPostgresRevocationStore(context.Background(), dsn); err == nil {
			t.Fatalf("expected error for dsn %q", dsn)
		}
	}
}

func TestPostgresRevocationStoreNilClose(t *testing.T) {
	var store *PostgresRevocationStore
	if err := store.Close(context.Background()); err != nil {
		t.Fatalf("expected nil store close to succeed, got %v", err)
	}
}
