package domain

// SlotStatus — статус слота публикации.
//
// Жизненный цикл:
//
//	PENDING → POSTING → POSTED
//	                  ↘ FAILED
//
// POSTED и FAILED — финальные: слот больше никогда не захватывается.
type SlotStatus string

const (
	// SlotStatusPending — слот ожидает своего времени публикации.
	SlotStatusPending SlotStatus = "pending"

	// SlotStatusPosting — слот захвачен воркером, идёт публикация.
	SlotStatusPosting SlotStatus = "posting"

	// SlotStatusPosted — контент успешно опубликован.
	SlotStatusPosted SlotStatus = "posted"

	// SlotStatusFailed — публикация не удалась (или слот закрыт пустым).
	SlotStatusFailed SlotStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s SlotStatus) IsTerminal() bool {
	switch s {
	case SlotStatusPosted, SlotStatusFailed:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус входит в известный набор.
func (s SlotStatus) IsValid() bool {
	switch s {
	case SlotStatusPending, SlotStatusPosting, SlotStatusPosted, SlotStatusFailed:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление SlotStatus.
func (s SlotStatus) String() string {
	return string(s)
}

// PostResult — итог одного вызова PostDue.
type PostResult string

const (
	// PostResultPosted — слот захвачен и опубликован.
	PostResultPosted PostResult = "POSTED"

	// PostResultError — публикация упала, слот переведён в FAILED.
	PostResultError PostResult = "ERROR"

	// PostResultNoScheduledContent — нет pending слотов в окне.
	PostResultNoScheduledContent PostResult = "NO_SCHEDULED_CONTENT"

	// PostResultEmptySlot — найден слот без контента.
	PostResultEmptySlot PostResult = "EMPTY_SCHEDULE_SLOT"

	// PostResultAlreadyClaimed — слот захватил другой воркер (no-op).
	PostResultAlreadyClaimed PostResult = "ALREADY_CLAIMED"
)

// IsFailure возвращает true для результатов, требующих ненулевого exit code.
func (r PostResult) IsFailure() bool {
	return r == PostResultError
}
