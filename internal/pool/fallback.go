package pool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/repo"
)

const defaultMinCandidates = domain.SlotsPerDay

// EvergreenItem — шаблон placeholder-кандидата.
type EvergreenItem struct {
	Platform    string `yaml:"platform"`
	ContentType string `yaml:"content_type"`
	Title       string `yaml:"title"`
	SourceURL   string `yaml:"source_url"`
}

// FallbackConfig — конфигурация деградированного режима.
type FallbackConfig struct {
	// Primary — основной пул.
	Primary ContentPool

	// Store — куда записываются placeholder'ы (чтобы их можно было ссылать из слотов).
	Store repo.CandidateStore

	// Evergreen — шаблоны для placeholder'ов. Пусто — режим выключен.
	Evergreen []EvergreenItem

	// MinCandidates — сколько кандидатов должен вернуть пул (default: 6).
	MinCandidates int

	// Now — часы (default: time.Now).
	Now func() time.Time

	Logger *slog.Logger
}

// FallbackPool — деградированный режим: если основной пул отдаёт меньше
// MinCandidates, добирает placeholder'ы из evergreen-шаблонов.
//
// Placeholder'ы проходят через то же хранилище и тот же селектор,
// ядро их не отличает.
type FallbackPool struct {
	primary   ContentPool
	store     repo.CandidateStore
	evergreen []EvergreenItem
	min       int
	now       func() time.Time
	logger    *slog.Logger
}

// NewFallbackPool создаёт FallbackPool.
func NewFallbackPool(cfg FallbackConfig) *FallbackPool {
	if cfg.MinCandidates <= 0 {
		cfg.MinCandidates = defaultMinCandidates
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FallbackPool{
		primary:   cfg.Primary,
		store:     cfg.Store,
		evergreen: cfg.Evergreen,
		min:       cfg.MinCandidates,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
}

// ListApprovedUnposted возвращает кандидатов основного пула,
// дополненных placeholder'ами до MinCandidates.
func (p *FallbackPool) ListApprovedUnposted(ctx context.Context, filter Filter) ([]domain.ContentCandidate, error) {
	candidates, err := p.primary.ListApprovedUnposted(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(candidates) >= p.min || len(p.evergreen) == 0 {
		return candidates, nil
	}

	existing, err := p.store.ListSelectableCandidates(ctx, repo.CandidateFilter{
		Platforms:           filter.Platforms,
		IncludePlaceholders: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list placeholders: %w", err)
	}
	for _, c := range existing {
		if len(candidates) >= p.min {
			break
		}
		if c.IsPlaceholder {
			candidates = append(candidates, c)
		}
	}

	var templates []EvergreenItem
	for _, item := range p.evergreen {
		if platformAllowed(filter.Platforms, item.Platform) {
			templates = append(templates, item)
		}
	}

	created := 0
	for i := 0; len(templates) > 0 && len(candidates) < p.min; i++ {
		item := templates[i%len(templates)]
		c := domain.ContentCandidate{
			ID:            uuid.New(),
			Platform:      item.Platform,
			ContentType:   item.ContentType,
			Title:         item.Title,
			SourceURL:     item.SourceURL,
			Approved:      true,
			Priority:      -1,
			IsPlaceholder: true,
			DiscoveredAt:  p.now().UTC(),
		}
		if err := p.store.InsertCandidate(ctx, &c); err != nil {
			return nil, fmt.Errorf("insert placeholder: %w", err)
		}
		candidates = append(candidates, c)
		created++
	}

	if created > 0 {
		p.logger.Warn("content pool degraded, placeholders injected",
			"created", created,
			"total", len(candidates),
		)
	}
	return candidates, nil
}

// MarkScheduled делегирует в хранилище: placeholder'ы живут только там.
func (p *FallbackPool) MarkScheduled(ctx context.Context, id uuid.UUID) error {
	return p.store.SetCandidateScheduled(ctx, id, true)
}

// MarkPosted делегирует в хранилище.
func (p *FallbackPool) MarkPosted(ctx context.Context, id uuid.UUID) error {
	return p.store.MarkCandidatePosted(ctx, id)
}

// Release делегирует в хранилище.
func (p *FallbackPool) Release(ctx context.Context, id uuid.UUID) error {
	return p.store.SetCandidateScheduled(ctx, id, false)
}

// --- Helpers ---

func platformAllowed(platforms []string, platform string) bool {
	if len(platforms) == 0 {
		return true
	}
	for _, p := range platforms {
		if p == platform {
			return true
		}
	}
	return false
}
