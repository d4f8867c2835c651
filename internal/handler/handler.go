// Package handler exposes the counter service over HTTP. It is the
// presentation collaborator of the core: request decoding, drink catalog
// validation, and response shaping live here, never in the domain.
package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/coffee-counter/internal/domain/order"
)

// Drinks is the menu the counter serves. Requests for drinks outside the
// catalog are rejected at this layer; the core accepts any key.
var Drinks = []string{"Latte", "Americano", "Cappuccino", "Mocha", "Long Black", "Fresh Milk"}

// Handler exposes the order queue endpoints, delegating all business logic
// to the counter service.
type Handler struct {
	svc    *order.Service
	drinks map[string]struct{}
}

// NewHandler constructs a Handler serving the default drink catalog.
func NewHandler(svc *order.Service) *Handler {
	drinks := make(map[string]struct{}, len(Drinks))
	for _, d := range Drinks {
		drinks[d] = struct{}{}
	}
	return &Handler{svc: svc, drinks: drinks}
}

// Routes registers all API endpoints on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/orders/pending", h.listPending)
	mux.HandleFunc("GET /api/orders/recent", h.listRecent)
	mux.HandleFunc("POST /api/orders/{ticket}/complete", h.completeOrder)
	mux.HandleFunc("DELETE /api/orders/completed", h.clearCompleted)
	mux.HandleFunc("GET /api/demand", h.drinkDemand)
	mux.HandleFunc("GET /api/stats/served", h.servedStats)
	return mux
}

// validTemperature reports whether t is a known serving temperature.
func validTemperature(t string) bool {
	return t == string(order.Hot) || t == string(order.Iced)
}

// writeJSON writes the encoder's buffer with the given status code.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the canonical {"code","message"} error body.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	writeJSON(w, status, &e)
}

// encodeOrder writes one order object: uid, ticket, createdAt, status and
// item lines in deterministic order.
func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("uid", func(e *jx.Encoder) { e.Str(o.UID) })
		e.Field("ticket", func(e *jx.Encoder) { e.Str(o.Ticket) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339Nano)) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("cups", func(e *jx.Encoder) { e.Int(o.Cups()) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, line := range itemLines(o.Items) {
					e.Obj(func(e *jx.Encoder) {
						e.Field("temperature", func(e *jx.Encoder) { e.Str(string(line.key.Temperature)) })
						e.Field("drink", func(e *jx.Encoder) { e.Str(line.key.Drink) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(line.qty) })
					})
				}
			})
		})
	})
}
