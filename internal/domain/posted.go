package domain

import (
	"time"

	"github.com/google/uuid"
)

// PostedRecord — доказательство завершённой публикации.
//
// Создаётся только claimer'ом после успешной публикации.
// Reconciliation лишь проставляет ScheduledSlotID у старых записей.
type PostedRecord struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// ContentCandidateID — опубликованный кандидат.
	ContentCandidateID uuid.UUID `json:"content_candidate_id"`

	// ScheduledSlotID — слот, из которого была публикация.
	// Nil у legacy-записей; не более одной записи на слот.
	ScheduledSlotID *uuid.UUID `json:"scheduled_slot_id,omitempty"`

	// Platform — платформа кандидата.
	Platform string `json:"platform"`

	// ExternalPostID — идентификатор поста на внешней площадке.
	ExternalPostID string `json:"external_post_id,omitempty"`

	// PostedAt — момент публикации (UTC).
	PostedAt time.Time `json:"posted_at"`
}

// IsLinked возвращает true, если запись привязана к слоту.
func (p *PostedRecord) IsLinked() bool {
	return p.ScheduledSlotID != nil && *p.ScheduledSlotID != uuid.Nil
}
