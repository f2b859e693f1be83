package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	mux.Handle("GET /api/v1/slots", chain(http.HandlerFunc(h.ListSlots)))
	mux.Handle("GET /api/v1/slots/{date}", chain(http.HandlerFunc(h.ListSlots)))
	mux.Handle("GET /api/v1/sla", chain(http.HandlerFunc(h.GetSLA)))
	mux.Handle("GET /api/v1/diversity", chain(http.HandlerFunc(h.GetDiversity)))
}
