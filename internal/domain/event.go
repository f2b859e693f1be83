package domain

import (
	"time"

	"github.com/google/uuid"
)

// SlotEvent — событие жизненного цикла слота (публикуется в брокер).
type SlotEvent struct {
	SlotID         uuid.UUID  `json:"slot_id"`
	Date           string     `json:"date,omitempty"`
	SlotIndex      int        `json:"slot_index"`
	Status         SlotStatus `json:"status"`
	Result         PostResult `json:"result,omitempty"`
	ContentID      *uuid.UUID `json:"content_id,omitempty"`
	Platform       string     `json:"platform,omitempty"`
	ExternalPostID string     `json:"external_post_id,omitempty"`
	Reasoning      string     `json:"reasoning,omitempty"`
	At             time.Time  `json:"at"`
}

// NewSlotEvent собирает событие из текущего состояния слота.
func NewSlotEvent(s *ScheduledSlot, status SlotStatus, result PostResult, at time.Time) SlotEvent {
	return SlotEvent{
		SlotID:    s.ID,
		Date:      s.Date,
		SlotIndex: s.SlotIndex,
		Status:    status,
		Result:    result,
		ContentID: s.ContentID,
		Platform:  s.Platform,
		Reasoning: s.Reasoning,
		At:        at,
	}
}
