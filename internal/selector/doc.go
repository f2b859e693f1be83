// Package selector реализует жадный выбор контента на день с учётом разнообразия.
//
// Алгоритм детерминирован: на каждом шаге выбирается платформа с наименьшим
// использованием за день (не выше дневного лимита), не совпадающая с платформой
// предыдущего выбора, затем из её очереди берётся элемент другого типа контента.
//
// Использование:
//
//	sel := selector.New(selector.Config{DailyCap: 2, BatchSize: 6})
//	res := sel.Select(selector.Input{
//	    Queues:          selector.GroupByPlatform(candidates),
//	    RecentPlatforms: recent,
//	})
package selector
