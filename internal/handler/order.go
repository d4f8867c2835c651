package handler

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/coffee-counter/internal/domain/order"
)

// itemLine is a decoded request line or a deterministic view of an order's
// item map.
type itemLine struct {
	key order.DrinkKey
	qty int
}

// itemLines flattens an item map into lines ordered by temperature then
// drink, so responses are reproducible.
func itemLines(items map[order.DrinkKey]int) []itemLine {
	lines := make([]itemLine, 0, len(items))
	for key, qty := range items {
		lines = append(lines, itemLine{key: key, qty: qty})
	}
	slices.SortFunc(lines, func(a, b itemLine) int {
		if c := strings.Compare(string(a.key.Temperature), string(b.key.Temperature)); c != 0 {
			return c
		}
		return strings.Compare(a.key.Drink, b.key.Drink)
	})
	return lines
}

// decodeOrderRequest reads {"items":[{"temperature","drink","quantity"}]}
// from the request body. Lines repeating a drink key accumulate.
func decodeOrderRequest(r *http.Request) (map[order.DrinkKey]int, error) {
	items := make(map[order.DrinkKey]int)

	d := jx.Decode(r.Body, 4096)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var line itemLine
			line.qty = 1 // omitted quantity means one cup
			if err := d.Obj(func(d *jx.Decoder, field string) error {
				switch field {
				case "temperature":
					s, err := d.Str()
					line.key.Temperature = order.Temperature(s)
					return err
				case "drink":
					s, err := d.Str()
					line.key.Drink = s
					return err
				case "quantity":
					n, err := d.Int()
					line.qty = n
					return err
				default:
					return d.Skip()
				}
			}); err != nil {
				return err
			}
			items[line.key] += line.qty
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode order request")
	}
	return items, nil
}

// placeOrder handles POST /api/orders.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	items, err := decodeOrderRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	// Catalog validation happens at this layer; the core accepts any key.
	for key := range items {
		if !validTemperature(string(key.Temperature)) {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown temperature %q", key.Temperature))
			return
		}
		if _, ok := h.drinks[key.Drink]; !ok {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown drink %q", key.Drink))
			return
		}
	}

	o, err := h.svc.PlaceOrder(r.Context(), items)
	if err != nil {
		var iqErr *order.InvalidQuantityError
		switch {
		case errors.Is(err, order.ErrEmptyItems):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &iqErr):
			writeError(w, http.StatusUnprocessableEntity, iqErr.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusCreated, &e)
}

// listPending handles GET /api/orders/pending: the waiter view, orders in
// first-ordered-first service order.
func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	pending := h.svc.ListPending(r.Context())

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("total", func(e *jx.Encoder) { e.Int(len(pending)) })
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range pending {
					encodeOrder(e, &pending[i])
				}
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
}

// listRecent handles GET /api/orders/recent?limit=N: last N orders newest
// first, any status.
func (h *Handler) listRecent(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recent := h.svc.ListRecent(r.Context(), limit)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range recent {
					encodeOrder(e, &recent[i])
				}
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
}

// completeOrder handles POST /api/orders/{ticket}/complete: serves exactly
// one pending order carrying the ticket.
func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	ticket := r.PathValue("ticket")

	o, err := h.svc.CompleteOrder(r.Context(), ticket)
	if err != nil {
		var nfErr *order.NotFoundError
		if errors.As(err, &nfErr) {
			writeError(w, http.StatusNotFound, nfErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("ticket", func(e *jx.Encoder) { e.Str(o.Ticket) })
		e.Field("uid", func(e *jx.Encoder) { e.Str(o.UID) })
		e.Field("servedCups", func(e *jx.Encoder) { e.Int(o.Cups()) })
	})
	writeJSON(w, http.StatusOK, &e)
}

// clearCompleted handles DELETE /api/orders/completed. Always succeeds.
func (h *Handler) clearCompleted(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearCompleted(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// drinkDemand handles GET /api/demand: the barista view, aggregated pending
// quantities per drink key in first-seen order.
func (h *Handler) drinkDemand(w http.ResponseWriter, r *http.Request) {
	demand := h.svc.DrinkDemand(r.Context())

	total := 0
	for _, entry := range demand {
		total += entry.Quantity
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("totalCups", func(e *jx.Encoder) { e.Int(total) })
		e.Field("demand", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, entry := range demand {
					e.Obj(func(e *jx.Encoder) {
						e.Field("temperature", func(e *jx.Encoder) { e.Str(string(entry.Key.Temperature)) })
						e.Field("drink", func(e *jx.Encoder) { e.Str(entry.Key.Drink) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(entry.Quantity) })
					})
				}
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
}

// servedStats handles GET /api/stats/served?date=YYYY-MM-DD. The date
// defaults to today.
func (h *Handler) servedStats(w http.ResponseWriter, r *http.Request) {
	var cups int
	day := r.URL.Query().Get("date")
	if day == "" {
		cups = h.svc.ServedToday(r.Context())
		var e jx.Encoder
		e.Obj(func(e *jx.Encoder) {
			e.Field("cups", func(e *jx.Encoder) { e.Int(cups) })
		})
		writeJSON(w, http.StatusOK, &e)
		return
	}

	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	cups = h.svc.ServedOn(r.Context(), t)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("date", func(e *jx.Encoder) { e.Str(day) })
		e.Field("cups", func(e *jx.Encoder) { e.Int(cups) })
	})
	writeJSON(w, http.StatusOK, &e)
}
