// Package schedule создаёт и дозаполняет дневные расписания.
//
// На каждый день по Eastern Time существует ровно шесть строк слотов.
// Generate идемпотентен без ForceRefill; Materialize дозаполняет
// пустые слоты на месте, сохраняя id и created_at строк.
package schedule
