package selector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shaiso/Herald/internal/domain"
)

// Default configuration values.
const (
	DefaultDailyCap  = 2
	DefaultBatchSize = domain.SlotsPerDay
)

// Config — конфигурация Selector.
type Config struct {
	DailyCap  int // максимум постов одной платформы в день (default: 2)
	BatchSize int // сколько элементов выбрать (default: 6)
}

// Selector выбирает упорядоченную пачку кандидатов на день.
type Selector struct {
	dailyCap  int
	batchSize int
}

// New создаёт новый Selector.
func New(cfg Config) *Selector {
	dailyCap := cfg.DailyCap
	if dailyCap <= 0 {
		dailyCap = DefaultDailyCap
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Selector{dailyCap: dailyCap, batchSize: batchSize}
}

// DailyCap возвращает дневной лимит на платформу.
func (s *Selector) DailyCap() int {
	return s.dailyCap
}

// Input — входные данные одного вызова Select.
type Input struct {
	// Queues — кандидаты по платформам, каждая очередь уже упорядочена
	// (см. GroupByPlatform).
	Queues map[string][]domain.ContentCandidate

	// RecentPlatforms — платформы, публиковавшиеся в окне lookback.
	RecentPlatforms map[string]bool

	// InitialUsage — использование платформ в этот день до выбора
	// (например, уже опубликованные слоты при перегенерации).
	InitialUsage map[string]int

	// PreviousPlatform / PreviousContentType — предыдущий выбор для правил
	// анти-повтора. Пустые строки — предыдущего выбора нет.
	PreviousPlatform    string
	PreviousContentType string

	// Limit — сколько выбрать; 0 означает BatchSize.
	Limit int
}

// Pick — один выбранный кандидат.
type Pick struct {
	Candidate  domain.ContentCandidate `json:"candidate"`
	Reasoning  string                  `json:"reasoning"`
	CapRelaxed bool                    `json:"cap_relaxed,omitempty"`
}

// Result — результат выбора.
type Result struct {
	Picks []Pick `json:"picks"`

	// Usage — итоговое использование платформ за день.
	Usage map[string]int `json:"usage"`

	// Exhausted — пул закончился раньше, чем набралось Limit элементов.
	Exhausted bool `json:"exhausted"`
}

// Candidates возвращает выбранных кандидатов по порядку.
func (r *Result) Candidates() []domain.ContentCandidate {
	out := make([]domain.ContentCandidate, len(r.Picks))
	for i, p := range r.Picks {
		out[i] = p.Candidate
	}
	return out
}

// Select выполняет жадный выбор.
//
// 1. Кандидатные платформы: есть остаток и использование < DailyCap;
//    если таких нет — любая платформа с остатком (лимит снимается, это пишется в Reasoning)
// 2. Платформа предыдущего выбора исключается, если есть альтернативы
// 3. Ранжирование: меньше использований → не публиковалась недавно → больше остаток
// 4. Из очереди берётся первый элемент с типом, отличным от предыдущего, иначе голова
//
// Если кандидатов меньше Limit — возвращается меньше элементов, это не ошибка.
func (s *Selector) Select(in Input) Result {
	limit := in.Limit
	if limit <= 0 {
		limit = s.batchSize
	}

	queues := make(map[string][]domain.ContentCandidate, len(in.Queues))
	for platform, q := range in.Queues {
		if len(q) == 0 {
			continue
		}
		queues[platform] = append([]domain.ContentCandidate(nil), q...)
	}

	usage := make(map[string]int, len(queues))
	for platform, n := range in.InitialUsage {
		usage[platform] = n
	}

	res := Result{Usage: usage}
	prevPlatform := in.PreviousPlatform
	prevType := in.PreviousContentType

	for len(res.Picks) < limit {
		available := platformsWithInventory(queues)
		if len(available) == 0 {
			res.Exhausted = true
			break
		}

		candidates := make([]string, 0, len(available))
		for _, p := range available {
			if usage[p] < s.dailyCap {
				candidates = append(candidates, p)
			}
		}
		relaxed := false
		if len(candidates) == 0 {
			candidates = available
			relaxed = true
		}

		if prevPlatform != "" && len(candidates) > 1 {
			candidates = without(candidates, prevPlatform)
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if usage[a] != usage[b] {
				return usage[a] < usage[b]
			}
			if in.RecentPlatforms[a] != in.RecentPlatforms[b] {
				return !in.RecentPlatforms[a]
			}
			if len(queues[a]) != len(queues[b]) {
				return len(queues[a]) > len(queues[b])
			}
			return a < b
		})

		platform := candidates[0]
		queue := queues[platform]
		idx := pickIndex(queue, prevType)
		chosen := queue[idx]
		queues[platform] = append(queue[:idx:idx], queue[idx+1:]...)
		usage[platform]++

		reasoning := fmt.Sprintf("platform=%s usage=%d/%d content_type=%s",
			platform, usage[platform], s.dailyCap, chosen.ContentType)
		if in.RecentPlatforms[platform] {
			reasoning += " recently_posted"
		}
		if relaxed {
			reasoning += fmt.Sprintf(" cap_relaxed: only %s have inventory", strings.Join(available, ","))
		}

		res.Picks = append(res.Picks, Pick{
			Candidate:  chosen,
			Reasoning:  reasoning,
			CapRelaxed: relaxed,
		})

		prevPlatform = platform
		prevType = chosen.ContentType
	}

	return res
}

// --- Helpers ---

// GroupByPlatform группирует кандидатов по платформам и упорядочивает очереди:
// priority ↓, confidence ↓, discovered_at ↑, id ↑.
// Неподходящие кандидаты (не одобрены, уже опубликованы или заняты) отбрасываются.
func GroupByPlatform(candidates []domain.ContentCandidate) map[string][]domain.ContentCandidate {
	out := make(map[string][]domain.ContentCandidate)
	for _, c := range candidates {
		if !c.IsSelectable() || c.Platform == "" {
			continue
		}
		out[c.Platform] = append(out[c.Platform], c)
	}

	for _, q := range out {
		sort.SliceStable(q, func(i, j int) bool {
			a, b := q[i], q[j]
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			if a.Confidence != b.Confidence {
				return a.Confidence > b.Confidence
			}
			if !a.DiscoveredAt.Equal(b.DiscoveredAt) {
				return a.DiscoveredAt.Before(b.DiscoveredAt)
			}
			return a.ID.String() < b.ID.String()
		})
	}
	return out
}

// platformsWithInventory возвращает платформы с непустыми очередями (по алфавиту).
func platformsWithInventory(queues map[string][]domain.ContentCandidate) []string {
	out := make([]string, 0, len(queues))
	for p, q := range queues {
		if len(q) > 0 {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// without возвращает копию list без элемента drop.
func without(list []string, drop string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != drop {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return list
	}
	return out
}

// pickIndex — индекс первого элемента с типом, отличным от prevType, иначе 0.
func pickIndex(queue []domain.ContentCandidate, prevType string) int {
	if prevType == "" {
		return 0
	}
	for i, c := range queue {
		if c.ContentType != prevType {
			return i
		}
	}
	return 0
}
