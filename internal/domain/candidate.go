package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContentCandidate — одобренный, ещё не опубликованный контент.
//
// Владелец — внешний контент-пайплайн. Ядро только читает кандидатов
// и выставляет флаги Scheduled/Posted.
type ContentCandidate struct {
	// ID — уникальный идентификатор кандидата.
	ID uuid.UUID `json:"id"`

	// Platform — источник контента.
	Platform string `json:"platform"`

	// ContentType — тип контента.
	ContentType string `json:"content_type"`

	// Title — заголовок для публикации.
	Title string `json:"title,omitempty"`

	// SourceURL — ссылка на исходный материал.
	SourceURL string `json:"source_url,omitempty"`

	// Approved — контент прошёл модерацию.
	Approved bool `json:"approved"`

	// Posted — контент уже опубликован.
	Posted bool `json:"posted"`

	// Scheduled — контент уже занят каким-либо слотом.
	Scheduled bool `json:"scheduled"`

	// Priority — приоритет (больше — важнее).
	Priority int `json:"priority"`

	// Confidence — оценка качества от внешнего пайплайна.
	Confidence float64 `json:"confidence"`

	// IsPlaceholder — кандидат создан в деградированном режиме (evergreen).
	IsPlaceholder bool `json:"is_placeholder,omitempty"`

	// DiscoveredAt — когда контент был найден.
	DiscoveredAt time.Time `json:"discovered_at"`
}

// IsSelectable возвращает true, если кандидата можно поставить в слот.
func (c *ContentCandidate) IsSelectable() bool {
	return c.Approved && !c.Posted && !c.Scheduled
}
