// Package mq публикует события жизненного цикла слотов в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с автоматическим reconnect
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — slot.posted / slot.failed / sla.breached
//   - consumer.go   — чтение очередей (herald events)
//
// Публикация — best effort: сбой брокера логируется и не влияет на
// состояние слотов в хранилище.
package mq
