package order

import (
	"math/rand"

	"github.com/go-faster/errors"
)

// Suits and Ranks define the 52-ticket identifier space: every ticket is a
// suit glyph followed by a rank glyph, playing-card style.
var (
	Suits = []string{"♠️", "♥️", "♦️", "♣️"}
	Ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
)

// PoolSize is the number of distinct tickets, len(Suits) * len(Ranks).
const PoolSize = 52

// AllocatorPolicy selects the ticket allocation strategy.
type AllocatorPolicy string

const (
	// PolicyRandomPool draws uniformly from the unused tickets and recycles
	// the whole pool once every ticket has been issued.
	PolicyRandomPool AllocatorPolicy = "random"
	// PolicySequentialCycle issues tickets in a fixed deterministic order,
	// wrapping around after the 52nd allocation.
	PolicySequentialCycle AllocatorPolicy = "sequential"
)

// ErrUnknownPolicy is returned by NewAllocator for an unrecognized policy.
var ErrUnknownPolicy = errors.New("unknown allocator policy")

// Allocator produces ticket identifiers for new orders. Tickets are cosmetic
// labels: both policies legitimately reuse a ticket string over the lifetime
// of the counter, so callers must never treat bare ticket equality as order
// identity. Allocators are not safe for concurrent use; the owning service
// serializes calls.
type Allocator interface {
	// Next returns the ticket for the next order.
	Next() (string, error)
}

// randomPool implements the recyclable pool policy: the set of issued
// tickets grows until the pool is exhausted, then resets wholesale. Issued
// tickets stay used regardless of order status until the reset.
type randomPool struct {
	rnd  *rand.Rand
	used map[string]struct{}
}

// NewRandomPool creates a recyclable-pool allocator drawing from rnd.
func NewRandomPool(rnd *rand.Rand) Allocator {
	return &randomPool{
		rnd:  rnd,
		used: make(map[string]struct{}, PoolSize),
	}
}

func (p *randomPool) Next() (string, error) {
	available := p.available()
	if len(available) == 0 {
		// Pool exhausted: recycle every ticket and start over.
		p.used = make(map[string]struct{}, PoolSize)
		available = p.available()
	}
	if len(available) == 0 {
		// Unreachable with a non-empty fixed pool; the caller falls back to
		// a counter label.
		return "", errors.New("ticket pool empty after reset")
	}

	ticket := available[p.rnd.Intn(len(available))]
	p.used[ticket] = struct{}{}
	return ticket, nil
}

// available lists the unissued tickets in deterministic pool order.
func (p *randomPool) available() []string {
	out := make([]string, 0, PoolSize-len(p.used))
	for _, suit := range Suits {
		for _, rank := range Ranks {
			ticket := suit + rank
			if _, ok := p.used[ticket]; !ok {
				out = append(out, ticket)
			}
		}
	}
	return out
}

// sequentialCycle implements the deterministic policy: allocation n yields
// rank n mod 13 of suit (n div 13) mod 4. Tickets repeat every 52
// allocations.
type sequentialCycle struct {
	counter uint64
}

// NewSequentialCycle creates a sequential allocator starting at the ace of
// the first suit.
func NewSequentialCycle() Allocator {
	return &sequentialCycle{}
}

func (s *sequentialCycle) Next() (string, error) {
	rank := Ranks[s.counter%uint64(len(Ranks))]
	suit := Suits[(s.counter/uint64(len(Ranks)))%uint64(len(Suits))]
	s.counter++
	return suit + rank, nil
}

// NewAllocator constructs the allocator for the given policy.
func NewAllocator(policy AllocatorPolicy, rnd *rand.Rand) (Allocator, error) {
	switch policy {
	case PolicyRandomPool:
		return NewRandomPool(rnd), nil
	case PolicySequentialCycle:
		return NewSequentialCycle(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownPolicy, "%q", policy)
	}
}
