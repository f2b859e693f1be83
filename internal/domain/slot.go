package domain

import (
	"time"

	"github.com/google/uuid"
)

// SlotsPerDay — количество фиксированных слотов публикации в сутки.
const SlotsPerDay = 6

// Причины (reasoning), которые ядро записывает в слоты.
const (
	ReasonAwaitingRefill = "awaiting_refill"
	ReasonEmptySlot      = "empty_schedule_slot"
	ReasonStuckInPosting = "stuck_in_posting"
)

// ScheduledSlot — одна фиксированная возможность публикации в сутки.
//
// На каждую пару (Date, SlotIndex) существует ровно одна строка.
// Строки создаются генератором (возможно, с ContentID = nil),
// изменяются хилером, materializer'ом и claimer'ом, но никогда не удаляются ядром.
type ScheduledSlot struct {
	// ID — уникальный идентификатор слота.
	ID uuid.UUID `json:"id"`

	// Date — календарный день по Eastern Time в формате YYYY-MM-DD.
	Date string `json:"date"`

	// SlotIndex — номер слота 0..5 (08:00, 12:00, 15:00, 18:00, 21:00, 23:30 ET).
	SlotIndex int `json:"slot_index"`

	// ScheduledPostTime — момент публикации в UTC.
	ScheduledPostTime time.Time `json:"scheduled_post_time"`

	// ContentID — ссылка на кандидата. Nil, если контента не нашлось.
	ContentID *uuid.UUID `json:"content_id,omitempty"`

	// Platform — платформа кандидата (youtube, reddit, giphy, ...).
	Platform string `json:"platform,omitempty"`

	// ContentType — тип контента (video, gif, image, text).
	ContentType string `json:"content_type,omitempty"`

	// Status — текущий статус слота.
	Status SlotStatus `json:"status"`

	// Reasoning — пояснение к выбору контента или причине неудачи.
	Reasoning string `json:"reasoning,omitempty"`

	// CreatedAt — время создания строки.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasContent возвращает true, если к слоту привязан кандидат.
func (s *ScheduledSlot) HasContent() bool {
	return s.ContentID != nil && *s.ContentID != uuid.Nil
}

// IsRefillable возвращает true, если контент слота ещё можно заменить.
func (s *ScheduledSlot) IsRefillable() bool {
	return s.Status == SlotStatusPending
}

// Assign привязывает кандидата к слоту.
func (s *ScheduledSlot) Assign(c *ContentCandidate, reasoning string) {
	id := c.ID
	s.ContentID = &id
	s.Platform = c.Platform
	s.ContentType = c.ContentType
	s.Reasoning = reasoning
	s.UpdatedAt = time.Now().UTC()
}

// Clear отвязывает контент и помечает слот как ожидающий дозаполнения.
func (s *ScheduledSlot) Clear() {
	s.ContentID = nil
	s.Platform = ""
	s.ContentType = ""
	s.Reasoning = ReasonAwaitingRefill
	s.UpdatedAt = time.Now().UTC()
}

// SlotTransition — условный переход статуса слота.
//
// Применяется только если текущий статус равен From;
// именно это делает захват слота атомарным.
type SlotTransition struct {
	SlotID    uuid.UUID
	From      SlotStatus
	To        SlotStatus
	Reasoning string
	At        time.Time

	// Content — если задан, переход требует content_id слота == *Content
	// (uuid.Nil — слот без контента).
	Content *uuid.UUID
}

// ExpectContent возвращает условие на контент для SlotTransition.Content.
func ExpectContent(id *uuid.UUID) *uuid.UUID {
	v := uuid.Nil
	if id != nil {
		v = *id
	}
	return &v
}
