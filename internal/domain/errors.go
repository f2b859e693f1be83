package domain

import (
	"errors"
	"fmt"
)

// Ошибки ядра планирования.
var (
	// ErrNoCandidate — в пуле нет кандидата для слота. Не фатально.
	ErrNoCandidate = errors.New("no content candidate available")

	// ErrClaimConflict — слот уже захвачен другим воркером. Это no-op.
	ErrClaimConflict = errors.New("slot already claimed")

	// ErrExternalPost — внешний Poster вернул ошибку или не уложился в таймаут.
	ErrExternalPost = errors.New("external post failed")

	// ErrPersistence — хранилище недоступно; прерывает текущий вызов.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError — некорректный ввод (дата, индекс слота, время).
// Возвращается до любой записи в хранилище.
type ValidationError struct {
	Field string
	Value string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Msg)
}

// IsValidation проверяет, является ли err ошибкой валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
