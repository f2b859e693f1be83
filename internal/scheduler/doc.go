// Package scheduler запускает периодические задачи Herald по cron в ET.
//
// Задачи по умолчанию:
//   - post-due    — каждые 5 минут
//   - sweep       — каждые 10 минут
//   - precompute  — 03:00, материализация окна дней и лечение разнообразия
//   - assert-sla  — 06:10
//
// Структура:
//   - scheduler.go — Runner: cron, повтор упавших задач (failsafe-go), метрики
//   - leader.go    — лидерство через pg_try_advisory_lock (Postgres) или Solo
//   - jobs.go      — задачи поверх app.App
//   - cron.go      — разбор cron-выражений
//
// Задачи выполняет только лидер: при нескольких экземплярах на Postgres
// остальные пропускают срабатывания.
package scheduler
