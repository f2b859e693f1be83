package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — условная запись не применилась: строка уже не в ожидаемом состоянии.
	ErrInvalidState = errors.New("invalid state")

	// ErrCandidateTaken — кандидат уже забронирован другим слотом или опубликован.
	ErrCandidateTaken = errors.New("candidate already taken")
)
