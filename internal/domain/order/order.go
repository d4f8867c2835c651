package order

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Temperature is the serving temperature of a drink line.
type Temperature string

const (
	Hot  Temperature = "Hot"
	Iced Temperature = "Iced"
)

// Status enumerates the order lifecycle states. Completed is terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// DrinkKey identifies one drink line: a serving temperature plus a drink
// name. It is the aggregation key for the barista demand view.
type DrinkKey struct {
	Temperature Temperature
	Drink       string
}

// String renders the key the way the counter displays it, e.g. "Hot Latte".
func (k DrinkKey) String() string {
	return string(k.Temperature) + " " + k.Drink
}

// Order is a single customer order. Ticket is a cosmetic short code and may
// repeat over the lifetime of the counter; UID and Seq together identify an
// order structurally. Orders are immutable after creation except for Status.
type Order struct {
	UID       string
	Ticket    string
	Seq       uint64
	Items     map[DrinkKey]int
	CreatedAt time.Time
	Status    Status
}

// Cups returns the total number of cups across all item lines.
func (o *Order) Cups() int {
	total := 0
	for _, qty := range o.Items {
		total += qty
	}
	return total
}

// ErrEmptyItems is returned when an order is placed with no items.
var ErrEmptyItems = errors.New("items required")

// InvalidQuantityError indicates a drink line has a non-positive quantity.
type InvalidQuantityError struct {
	Key DrinkKey
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for %s", e.Key)
}

// NotFoundError indicates no pending order carries the requested ticket.
type NotFoundError struct {
	Ticket string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no pending order with ticket %s", e.Ticket)
}

// Repository holds the append-only order log and its status transitions.
// Implementations must be safe for concurrent use: Append,
// CompleteFirstPending and ClearCompleted are read-modify-write sequences
// that must not interleave.
type Repository interface {
	// Append stores a fully formed order. It rejects orders with no items
	// or non-positive quantities.
	Append(o *Order) error
	// CompleteFirstPending flips the earliest pending order carrying the
	// ticket to Completed and returns a copy of it. It returns a
	// *NotFoundError when no pending order matches. At most one order
	// transitions per call.
	CompleteFirstPending(ticket string) (*Order, error)
	// Pending returns pending orders in service order: ascending CreatedAt,
	// insertion order breaking ties.
	Pending() []Order
	// Recent returns up to limit most recent orders, newest first, any status.
	Recent(limit int) []Order
	// ClearCompleted removes completed orders and reports how many were
	// dropped. Pending orders keep their relative order. Idempotent.
	ClearCompleted() int
	// All returns a copy of the full order log in insertion order.
	All() []Order
	// Len reports the total number of stored orders, any status.
	Len() int
}
