package api

import (
	"net/http"
	"strconv"

	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/slottime"
)

// ListSlots — GET /api/v1/slots[/{date}], по умолчанию сегодня по ET.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if date == "" {
		date = r.URL.Query().Get("date")
	}
	if date == "" {
		date = slottime.TodayET(h.now())
	} else if HandleError(w, h.logger, slottime.ValidateDate(date)) {
		return
	}

	slots, err := h.store.ListSlotsByDate(r.Context(), date)
	if HandleError(w, h.logger, err) {
		return
	}
	if slots == nil {
		slots = []domain.ScheduledSlot{}
	}
	List(w, slots, len(slots))
}

// GetSLA — GET /api/v1/sla?today_min=&tomorrow_min=.
// Нарушение SLA не ошибка запроса: ответ 200 с passed=false.
func (h *Handler) GetSLA(w http.ResponseWriter, r *http.Request) {
	todayMin, err := intParam(r, "today_min", h.todayMin)
	if HandleError(w, h.logger, err) {
		return
	}
	tomorrowMin, err := intParam(r, "tomorrow_min", h.tomorrowMin)
	if HandleError(w, h.logger, err) {
		return
	}

	report, err := h.guard.AssertSLA(r.Context(), h.now(), todayMin, tomorrowMin)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, report)
}

// GetDiversity — GET /api/v1/diversity?from=&to=.
// По умолчанию окно [сегодня, сегодня+daysAhead).
func (h *Handler) GetDiversity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := q.Get("from")
	if from == "" {
		from = slottime.TodayET(h.now())
	}
	to := q.Get("to")
	if to == "" {
		var err error
		to, err = slottime.AddDays(from, h.daysAhead-1)
		if HandleError(w, h.logger, err) {
			return
		}
	}

	report, err := h.analyzer.Analyze(r.Context(), from, to)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, report)
}

// --- Helpers ---

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Value: v, Msg: "expected integer"}
	}
	return n, nil
}
