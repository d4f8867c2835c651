package order

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DemandEntry is one row of the barista demand view: a drink key and the
// total pending quantity for it.
type DemandEntry struct {
	Key      DrinkKey
	Quantity int
}

// Service coordinates ticket allocation, the order log, the demand views,
// and the served-cups counters. It owns all session state besides the order
// log itself: the allocator, the placement sequence, and the per-day served
// totals, all guarded by one mutex so the read-modify-write sequences of
// each operation never interleave.
type Service struct {
	repo  Repository
	alloc Allocator
	lg    *zap.Logger
	now   func() time.Time

	mu     sync.Mutex
	seq    uint64
	served map[string]int // date "2006-01-02" -> cups

	placedCount   metric.Int64Counter
	servedCups    metric.Int64Counter
	fallbackCount metric.Int64Counter
}

// NewService creates the counter service. The meter registers the counters
// used to observe placements, served cups, and allocator degradations.
func NewService(repo Repository, alloc Allocator, lg *zap.Logger, meter metric.Meter) (*Service, error) {
	s := &Service{
		repo:   repo,
		alloc:  alloc,
		lg:     lg,
		now:    time.Now,
		served: make(map[string]int),
	}

	var err error
	if s.placedCount, err = meter.Int64Counter("counter.orders.placed"); err != nil {
		return nil, errors.Wrap(err, "placed counter")
	}
	if s.servedCups, err = meter.Int64Counter("counter.cups.served"); err != nil {
		return nil, errors.Wrap(err, "served counter")
	}
	if s.fallbackCount, err = meter.Int64Counter("counter.tickets.fallback"); err != nil {
		return nil, errors.Wrap(err, "fallback counter")
	}
	return s, nil
}

// PlaceOrder validates the item selection, allocates a ticket, and appends
// the order to the log. Allocator failures never block placement: the order
// falls back to a plain counter label and the degradation is logged and
// metered.
func (s *Service) PlaceOrder(ctx context.Context, items map[DrinkKey]int) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	for key, qty := range items {
		if qty <= 0 {
			return nil, &InvalidQuantityError{Key: key}
		}
	}

	// Copy the items so the stored order cannot be mutated by the caller.
	stored := make(map[DrinkKey]int, len(items))
	for key, qty := range items {
		stored[key] = qty
	}

	s.mu.Lock()
	ticket, err := s.alloc.Next()
	if err != nil {
		ticket = "#" + strconv.Itoa(s.repo.Len()+1)
		s.lg.Warn("ticket allocator degraded to counter label",
			zap.Error(err),
			zap.String("ticket", ticket),
		)
		s.fallbackCount.Add(ctx, 1)
	}
	s.seq++
	o := &Order{
		UID:       uuid.New().String(),
		Ticket:    ticket,
		Seq:       s.seq,
		Items:     stored,
		CreatedAt: s.now(),
		Status:    StatusPending,
	}
	s.mu.Unlock()

	if err := s.repo.Append(o); err != nil {
		return nil, errors.Wrap(err, "append order")
	}

	s.placedCount.Add(ctx, 1)
	s.lg.Info("order placed",
		zap.String("ticket", o.Ticket),
		zap.String("uid", o.UID),
		zap.Int("cups", o.Cups()),
	)
	return o, nil
}

// ListPending returns the waiter view: pending orders first-ordered-first.
func (s *Service) ListPending(_ context.Context) []Order {
	return s.repo.Pending()
}

// ListRecent returns up to limit most recent orders, newest first.
func (s *Service) ListRecent(_ context.Context, limit int) []Order {
	return s.repo.Recent(limit)
}

// DrinkDemand returns the barista view: total pending quantity per drink
// key, in first-seen order over the pending list so the result is
// deterministic for a given store state.
func (s *Service) DrinkDemand(_ context.Context) []DemandEntry {
	pending := s.repo.Pending()

	index := make(map[DrinkKey]int, len(pending))
	entries := make([]DemandEntry, 0, len(pending))
	for _, o := range pending {
		// Iterate the order's lines in deterministic key order.
		for _, key := range sortedKeys(o.Items) {
			if i, ok := index[key]; ok {
				entries[i].Quantity += o.Items[key]
				continue
			}
			index[key] = len(entries)
			entries = append(entries, DemandEntry{Key: key, Quantity: o.Items[key]})
		}
	}
	return entries
}

// CompleteOrder serves the earliest pending order carrying the ticket and
// credits its cups to today's served counter. The counter is only updated
// when the store transition succeeded, so double completion of the same
// ticket can never double-count.
func (s *Service) CompleteOrder(ctx context.Context, ticket string) (*Order, error) {
	o, err := s.repo.CompleteFirstPending(ticket)
	if err != nil {
		return nil, err
	}

	cups := o.Cups()
	s.mu.Lock()
	day := s.now().Format("2006-01-02")
	s.served[day] += cups
	s.mu.Unlock()

	s.servedCups.Add(ctx, int64(cups))
	s.lg.Info("order served",
		zap.String("ticket", o.Ticket),
		zap.String("uid", o.UID),
		zap.Int("cups", cups),
	)
	return o, nil
}

// ClearCompleted drops completed orders from the log. Maintenance only:
// pending orders and the served counters are untouched.
func (s *Service) ClearCompleted(_ context.Context) int {
	cleared := s.repo.ClearCompleted()
	if cleared > 0 {
		s.lg.Info("completed orders cleared", zap.Int("count", cleared))
	}
	return cleared
}

// ServedToday returns the cups served so far on the current date.
func (s *Service) ServedToday(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served[s.now().Format("2006-01-02")]
}

// ServedOn returns the cups served on the given day. Prior days remain
// queryable for as long as the session lives.
func (s *Service) ServedOn(_ context.Context, day time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served[day.Format("2006-01-02")]
}

// Snapshot returns a stable copy of the full order log for external
// collaborators such as the snapshot exporter.
func (s *Service) Snapshot(_ context.Context) []Order {
	return s.repo.All()
}

// sortedKeys returns the item keys ordered by temperature then drink name.
func sortedKeys(items map[DrinkKey]int) []DrinkKey {
	keys := make([]DrinkKey, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b DrinkKey) int {
		if c := strings.Compare(string(a.Temperature), string(b.Temperature)); c != 0 {
			return c
		}
		return strings.Compare(a.Drink, b.Drink)
	})
	return keys
}
