// Package ledger moves inventory units between clean stock, circulation and
// laundry. A Ledger works on a private copy of the items it is given; callers
// persist Items() and Transactions() once an operation has succeeded.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/model"
)

// Line is a quantity of one item.
type Line struct {
	ItemID string `json:"item_id"`
	Qty    int    `json:"qty"`
}

// Event carries who and where an operation happened.
type Event struct {
	FacilityName string
	RoomCode     string
	StaffID      string
	Note         string
	At           time.Time
}

// Shortage is a unit count that did not come back at checkout.
type Shortage struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
}

// Missing returns how many units are unaccounted for.
func (s Shortage) Missing() int { return s.Expected - s.Actual }

func (s Shortage) String() string { return fmt.Sprintf("%s x%d", s.Name, s.Missing()) }

// ShortageNote renders shortages as the line appended to a task note, or ""
// when nothing is missing.
func ShortageNote(shortages []Shortage) string {
	if len(shortages) == 0 {
		return ""
	}
	parts := make([]string, 0, len(shortages))
	for _, s := range shortages {
		parts = append(parts, s.String())
	}
	return "[MISSING] " + strings.Join(parts, ", ")
}

// Outcome summarises one operation.
type Outcome struct {
	Charges   []model.ServiceLine `json:"charges,omitempty"`
	Loans     []model.LendingLine `json:"loans,omitempty"`
	Shortages []Shortage          `json:"shortages,omitempty"`
	Skipped   []error             `json:"-"`
	Returned  int                 `json:"returned"`
}

// Ledger applies inventory operations to a working copy of items.
type Ledger struct {
	items   map[string]model.InventoryItem
	touched []string
	seen    map[string]bool
	txs     []model.InventoryTransaction
	newID   func() string
}

// New creates a ledger over a copy of items. newID allocates transaction ids.
func New(items []model.InventoryItem, newID func() string) *Ledger {
	m := make(map[string]model.InventoryItem, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return &Ledger{items: m, seen: make(map[string]bool), newID: newID}
}

// Item returns the working copy of an item.
func (l *Ledger) Item(id string) (model.InventoryItem, bool) {
	it, ok := l.items[id]
	return it, ok
}

// Items returns every item changed so far, in first-touched order.
func (l *Ledger) Items() []model.InventoryItem {
	out := make([]model.InventoryItem, 0, len(l.touched))
	for _, id := range l.touched {
		out = append(out, l.items[id])
	}
	return out
}

// Transactions returns the log entries produced so far.
func (l *Ledger) Transactions() []model.InventoryTransaction {
	return append([]model.InventoryTransaction(nil), l.txs...)
}

// Consume takes items out of clean stock for good. Priced items become
// charges for the room's bill; amenities never do.
func (l *Ledger) Consume(ev Event, lines []Line) (Outcome, error) {
	if err := validate(lines); err != nil {
		return Outcome{}, err
	}
	var out Outcome
	for _, line := range lines {
		if line.Qty == 0 {
			continue
		}
		it, ok := l.items[line.ItemID]
		if !ok {
			out.Skipped = append(out.Skipped, errs.NotFound("inventory item", line.ItemID))
			continue
		}
		it.CleanStock = clamp(it.CleanStock - line.Qty)
		it.InCirculation = clamp(it.InCirculation)
		it.LaundryStock = clamp(it.LaundryStock)
		l.put(it)

		txType := model.TxAmenityUsed
		if it.Price.IsPositive() {
			txType = model.TxMinibarSold
			out.Charges = append(out.Charges, model.ServiceLine{
				ItemID:   it.ID,
				Name:     it.Name,
				Quantity: line.Qty,
				Price:    it.Price,
				Total:    it.Price.Mul(decimal.NewFromInt(int64(line.Qty))),
			})
		}
		l.record(ev, it, txType, line.Qty, it.CostPrice)
	}
	return out, nil
}

// Lend issues items to a guest. Loans carry no monetary value.
func (l *Ledger) Lend(ev Event, lines []Line) (Outcome, error) {
	if err := validate(lines); err != nil {
		return Outcome{}, err
	}
	return l.lend(ev, lines), nil
}

func (l *Ledger) lend(ev Event, lines []Line) Outcome {
	var out Outcome
	for _, line := range lines {
		if line.Qty == 0 {
			continue
		}
		it, ok := l.items[line.ItemID]
		if !ok {
			out.Skipped = append(out.Skipped, errs.NotFound("inventory item", line.ItemID))
			continue
		}
		it.CleanStock = clamp(it.CleanStock - line.Qty)
		it.InCirculation = clamp(it.InCirculation + line.Qty)
		it.LaundryStock = clamp(it.LaundryStock)
		l.put(it)
		out.Loans = append(out.Loans, model.LendingLine{ItemID: it.ID, ItemName: it.Name, Quantity: line.Qty})
		l.record(ev, it, model.TxOut, line.Qty, decimal.Zero)
	}
	return out
}

// Return moves counted units from circulation into laundry. actual holds the
// counted quantities; an item in expected without a count is taken as fully
// returned. Shortfalls are reported, never booked.
func (l *Ledger) Return(ev Event, actual, expected []Line) (Outcome, error) {
	if err := validate(actual); err != nil {
		return Outcome{}, err
	}
	if err := validate(expected); err != nil {
		return Outcome{}, err
	}
	return l.ret(ev, actual, expected), nil
}

func (l *Ledger) ret(ev Event, actual, expected []Line) Outcome {
	counted := make(map[string]int, len(actual))
	for _, line := range actual {
		counted[line.ItemID] += line.Qty
	}
	want := make(map[string]int, len(expected))
	var order []string
	for _, line := range expected {
		if _, seen := want[line.ItemID]; !seen {
			order = append(order, line.ItemID)
		}
		want[line.ItemID] += line.Qty
	}
	for _, line := range actual {
		if _, seen := want[line.ItemID]; !seen {
			want[line.ItemID] = 0
			order = append(order, line.ItemID)
		}
	}

	var out Outcome
	for _, id := range order {
		exp := want[id]
		act, ok := counted[id]
		if !ok {
			act = exp
		}
		it, found := l.items[id]
		if !found {
			out.Skipped = append(out.Skipped, errs.NotFound("inventory item", id))
			continue
		}
		if act > 0 {
			it.InCirculation = clamp(it.InCirculation - act)
			it.LaundryStock = clamp(it.LaundryStock + act)
			it.CleanStock = clamp(it.CleanStock)
			l.put(it)
			l.record(ev, it, model.TxReturn, act, decimal.Zero)
			out.Returned += act
		}
		if act < exp {
			out.Shortages = append(out.Shortages, Shortage{ItemID: id, Name: it.Name, Expected: exp, Actual: act})
		}
	}
	return out
}

// Exchange swaps a stay-over room's used linen for fresh units: the fresh
// set goes out and the used set comes back in the same visit.
func (l *Ledger) Exchange(ev Event, lines []Line) (Outcome, error) {
	if err := validate(lines); err != nil {
		return Outcome{}, err
	}
	lent := l.lend(ev, lines)
	returned := l.ret(ev, lines, lines)
	return Outcome{
		Loans:    lent.Loans,
		Skipped:  append(lent.Skipped, returned.Skipped...),
		Returned: returned.Returned,
	}, nil
}

// Launder restocks clean units from laundry.
func (l *Ledger) Launder(ev Event, lines []Line) (Outcome, error) {
	if err := validate(lines); err != nil {
		return Outcome{}, err
	}
	var out Outcome
	for _, line := range lines {
		if line.Qty == 0 {
			continue
		}
		it, ok := l.items[line.ItemID]
		if !ok {
			out.Skipped = append(out.Skipped, errs.NotFound("inventory item", line.ItemID))
			continue
		}
		it.LaundryStock = clamp(it.LaundryStock - line.Qty)
		it.CleanStock = clamp(it.CleanStock + line.Qty)
		it.InCirculation = clamp(it.InCirculation)
		l.put(it)
		l.record(ev, it, model.TxLaundered, line.Qty, decimal.Zero)
	}
	return out, nil
}

// Expected lists what should come back from a room at checkout: the
// circulating part of its recipe plus anything lent on the booking.
func Expected(recipe *model.RoomRecipe, items []model.InventoryItem, booking *model.Booking) []Line {
	byID := make(map[string]model.InventoryItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	var lines []Line
	index := make(map[string]int)
	add := func(id string, qty int) {
		if qty <= 0 {
			return
		}
		if i, ok := index[id]; ok {
			lines[i].Qty += qty
			return
		}
		index[id] = len(lines)
		lines = append(lines, Line{ItemID: id, Qty: qty})
	}

	if recipe != nil {
		for _, r := range recipe.Items {
			if it, ok := byID[r.ItemID]; ok && it.Circulates() {
				add(r.ItemID, r.Quantity)
			}
		}
	}
	if booking != nil {
		for _, loan := range booking.LendingItems {
			add(loan.ItemID, loan.Quantity)
		}
	}
	return lines
}

func (l *Ledger) put(it model.InventoryItem) {
	if !l.seen[it.ID] {
		l.seen[it.ID] = true
		l.touched = append(l.touched, it.ID)
	}
	l.items[it.ID] = it
}

func (l *Ledger) record(ev Event, it model.InventoryItem, typ model.TransactionType, qty int, unitCost decimal.Decimal) {
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	l.txs = append(l.txs, model.InventoryTransaction{
		ID:           l.newID(),
		ItemID:       it.ID,
		ItemName:     it.Name,
		Type:         typ,
		Quantity:     qty,
		UnitCost:     unitCost,
		TotalValue:   unitCost.Mul(decimal.NewFromInt(int64(qty))),
		FacilityName: ev.FacilityName,
		RoomCode:     ev.RoomCode,
		StaffID:      ev.StaffID,
		Note:         ev.Note,
		CreatedAt:    at,
	})
}

func validate(lines []Line) error {
	for i, line := range lines {
		if strings.TrimSpace(line.ItemID) == "" {
			return errs.Validation(fmt.Sprintf("items[%d].item_id", i), "is required")
		}
		if line.Qty < 0 {
			return errs.Validation(fmt.Sprintf("items[%d].qty", i), "must not be negative, got %d", line.Qty)
		}
	}
	return nil
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
