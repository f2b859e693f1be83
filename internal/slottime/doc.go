// Package slottime — чистая арифметика времени слотов без I/O.
//
// Все слоты задаются по настенному времени America/New_York (ET):
//
//	0 — 08:00   1 — 12:00   2 — 15:00
//	3 — 18:00   4 — 21:00   5 — 23:30
//
// Переход на летнее время определяется базой часовых поясов IANA
// (time/tzdata встроена в бинарник), а не порогами по дню месяца.
//
// Структура:
//   - slottime.go — конвертация ET ↔ UTC, окна слотов, текущий слот
package slottime
