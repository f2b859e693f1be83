// Package repotest — хелперы для тестов поверх in-memory SQLite.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/repo"
)

// NewStore открывает чистую in-memory базу со схемой.
func NewStore(t testing.TB) *repo.SQLiteStore {
	t.Helper()

	ctx := context.Background()
	store, err := repo.OpenSQLite(ctx, ":memory:", time.Second)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// Candidate — одобренный кандидат с детерминированным discovered_at.
func Candidate(platform, contentType string, priority int) domain.ContentCandidate {
	return domain.ContentCandidate{
		ID:           uuid.New(),
		Platform:     platform,
		ContentType:  contentType,
		Title:        platform + " " + contentType,
		Approved:     true,
		Priority:     priority,
		Confidence:   0.5,
		DiscoveredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// SeedCandidates записывает кандидатов в хранилище.
func SeedCandidates(t testing.TB, store repo.CandidateStore, candidates ...domain.ContentCandidate) {
	t.Helper()
	for i := range candidates {
		if err := store.InsertCandidate(context.Background(), &candidates[i]); err != nil {
			t.Fatalf("insert candidate %s: %v", candidates[i].Platform, err)
		}
	}
}
