// Package testutil holds shared helpers for package tests.
package testutil

import (
	"testing"

	"github.com/xiaot623/agentmcp/internal/store"
)

// NewTestStore returns an in-memory SQLite store closed at test cleanup.
func NewTestStore(t *testing.T) *store.SQLStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
