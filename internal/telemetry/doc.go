// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Метрики регистрируются в default registry; herald-scheduler
// экспортирует их на /metrics.
package telemetry
