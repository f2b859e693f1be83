// Package cli реализует команды herald.
//
// Команды работают с ядром напрямую (хранилище, генератор, Claimer),
// без HTTP-прослойки. Каждая команда создаётся фабрикой (NewGenerateCmd и
// т.д.), принимающей AppFunc и OutputFunc — замыкания, которые лениво
// собирают компоненты после разбора persistent-флагов.
//
// Вывод:
//   - таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные идут в stdout, сообщения — в stderr:
//
//	herald analyze --json | jq '.days[].score'
//
// Коды выхода: 0 — успех (в том числе «нечего публиковать»), 1 — ошибка
// или блокирующая проблема (ERROR при публикации, нарушение SLA).
package cli
