// Package cart keeps each session's pending purchases in memory until checkout.
package cart

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lootmarket-backend/internal/pricing"
)

// Item is one cart line. UnitPrice is the listing price per 500 units and
// Stock is the listing stock observed when the line was last added.
type Item struct {
	ListingID uuid.UUID
	Title     string
	Game      string
	Server    *string
	UnitPrice decimal.Decimal
	Quantity  int
	Stock     int
}

// LineTotal returns the exact price of the line.
func (i Item) LineTotal() decimal.Decimal {
	return pricing.LineTotal(i.UnitPrice, i.Quantity)
}

// Store is a single session's cart. Lines keep insertion order.
type Store struct {
	mu          sync.Mutex
	items       []Item
	checkingOut bool
}

func NewStore() *Store {
	return &Store{}
}

// AddItem merges item into the cart. Quantities of an existing line are
// summed and then capped at the largest orderable quantity the stock snapshot
// covers; the incoming snapshot wins when it carries one. A zero stock
// snapshot means no cap. A line whose stock cannot cover one minimum step is
// dropped.
func (s *Store) AddItem(item Item) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		existing := &s.items[i]
		if existing.ListingID != item.ListingID {
			continue
		}
		if item.Stock > 0 {
			existing.Stock = item.Stock
		}
		existing.Quantity = clampToStock(existing.Quantity+item.Quantity, existing.Stock)
		if existing.Quantity <= 0 {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return s.snapshot()
		}
		existing.UnitPrice = item.UnitPrice
		existing.Title = item.Title
		existing.Game = item.Game
		existing.Server = item.Server
		return s.snapshot()
	}
	item.Quantity = clampToStock(item.Quantity, item.Stock)
	if item.Quantity > 0 {
		s.items = append(s.items, item)
	}
	return s.snapshot()
}

// UpdateQuantity sets the quantity of an existing line. Unknown listings are
// ignored and a non-positive quantity removes the line.
func (s *Store) UpdateQuantity(listingID uuid.UUID, quantity int) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ListingID != listingID {
			continue
		}
		if quantity <= 0 {
			s.items = append(s.items[:i], s.items[i+1:]...)
		} else {
			s.items[i].Quantity = quantity
		}
		break
	}
	return s.snapshot()
}

// RemoveItem drops the line for listingID if present.
func (s *Store) RemoveItem(listingID uuid.UUID) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ListingID == listingID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	return s.snapshot()
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// BeginCheckout marks the cart as being checked out and returns its lines. It
// reports false while another checkout of the same cart is running.
func (s *Store) BeginCheckout() ([]Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkingOut {
		return nil, false
	}
	s.checkingOut = true
	return s.snapshot(), true
}

// EndCheckout releases the checkout mark and drops the lines of the ordered
// listings. Lines added while the checkout ran are kept.
func (s *Store) EndCheckout(ordered ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkingOut = false
	if len(ordered) == 0 {
		return
	}
	kept := s.items[:0]
	for _, item := range s.items {
		if !slices.Contains(ordered, item.ListingID) {
			kept = append(kept, item)
		}
	}
	clear(s.items[len(kept):])
	s.items = kept
}

// Items returns a copy of the current lines.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Find returns the line for listingID.
func (s *Store) Find(listingID uuid.UUID) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ListingID == listingID {
			return item, true
		}
	}
	return Item{}, false
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// TotalPrice sums exact line totals; rounding happens only when formatting.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func (s *Store) snapshot() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func clampToStock(quantity, stock int) int {
	if stock <= 0 {
		return quantity
	}
	return min(quantity, pricing.MaxOrderable(stock))
}
