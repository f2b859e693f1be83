package pool

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
)

const defaultCacheTTL = 5 * time.Minute

// CachedPool — снимок пула с явным TTL.
//
// Кэш принадлежит вызывающему коду; часы подменяются в тестах.
// Любая мутация (MarkScheduled/MarkPosted/Release) сбрасывает кэш.
type CachedPool struct {
	inner ContentPool
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	candidates []domain.ContentCandidate
	expires    time.Time
}

// NewCachedPool создаёт CachedPool. ttl <= 0 — default (5m); now == nil — time.Now.
func NewCachedPool(inner ContentPool, ttl time.Duration, now func() time.Time) *CachedPool {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &CachedPool{
		inner:   inner,
		ttl:     ttl,
		now:     now,
		entries: map[string]cacheEntry{},
	}
}

// ListApprovedUnposted возвращает копию закэшированного снимка или обновляет его.
func (p *CachedPool) ListApprovedUnposted(ctx context.Context, filter Filter) ([]domain.ContentCandidate, error) {
	key := filterKey(filter)
	now := p.now()

	p.mu.Lock()
	if e, ok := p.entries[key]; ok && now.Before(e.expires) {
		out := append([]domain.ContentCandidate(nil), e.candidates...)
		p.mu.Unlock()
		return out, nil
	}
	p.mu.Unlock()

	candidates, err := p.inner.ListApprovedUnposted(ctx, filter)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.entries[key] = cacheEntry{
		candidates: append([]domain.ContentCandidate(nil), candidates...),
		expires:    now.Add(p.ttl),
	}
	p.mu.Unlock()
	return candidates, nil
}

// MarkScheduled делегирует и сбрасывает кэш.
func (p *CachedPool) MarkScheduled(ctx context.Context, id uuid.UUID) error {
	defer p.Invalidate()
	return p.inner.MarkScheduled(ctx, id)
}

// MarkPosted делегирует и сбрасывает кэш.
func (p *CachedPool) MarkPosted(ctx context.Context, id uuid.UUID) error {
	defer p.Invalidate()
	return p.inner.MarkPosted(ctx, id)
}

// Release делегирует и сбрасывает кэш.
func (p *CachedPool) Release(ctx context.Context, id uuid.UUID) error {
	defer p.Invalidate()
	return p.inner.Release(ctx, id)
}

// Invalidate очищает все снимки.
func (p *CachedPool) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.entries {
		delete(p.entries, k)
	}
}

// --- Helpers ---

func filterKey(f Filter) string {
	platforms := append([]string(nil), f.Platforms...)
	sort.Strings(platforms)
	return fmt.Sprintf("%s|%d", strings.Join(platforms, ","), f.Limit)
}
