// Package api содержит read-only HTTP API состояния расписания.
//
// Структура:
//   - handler.go       — Handler и его зависимости
//   - routes.go        — регистрация маршрутов
//   - middleware.go    — middleware (logging, recovery, metrics)
//   - response.go      — унифицированные JSON-ответы и обработка ошибок
//   - slot_handler.go  — /slots, /sla, /diversity
//
// API ничего не меняет: публикация и генерация идут через CLI и cron.
// Сервер поднимает herald-scheduler рядом с /healthz и /metrics.
package api
