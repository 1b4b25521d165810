package cart

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-checkout.git/internal/catalog"
)

// Line is one stored cart entry. The unit price is a snapshot taken when the
// product was first added; stock is always re-read live, never stored.
type Line struct {
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Cart is a session-scoped snapshot of the stored lines. It is passed by
// value through the checkout chain; nothing below the HTTP layer touches
// session storage directly.
type Cart struct {
	SessionID string
	Lines     map[int64]Line
}

// Len sums stored quantities, including lines whose product has since gone
// inactive. Items() filters those out, so Len and len(Items()) can diverge.
func (c Cart) Len() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Qty
	}
	return n
}

// ProductIDs returns the distinct product ids in ascending order. Reservation
// locks rows in exactly this order.
func (c Cart) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c.Lines))
	for id := range c.Lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TotalPrice sums unit_price * qty over stored lines, inactive products
// included.
func (c Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty))))
	}
	return total
}

type AddResult struct {
	Requested int  `json:"requested"`
	Final     int  `json:"final"`
	MaxStock  int  `json:"max_stock"`
	Clamped   bool `json:"clamped"`
	Removed   bool `json:"removed"`
}

// Item is one renderable cart row, joined against a live active product.
type Item struct {
	Product    catalog.Product `json:"product"`
	Qty        int             `json:"qty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	MaxQty     int             `json:"max_qty"` // UI hint, still validated at checkout
}

// Store persists cart lines for a session.
type Store interface {
	Load(ctx context.Context, sessionID string) (map[int64]Line, error)
	SetLine(ctx context.Context, sessionID string, productID int64, line Line) error
	DeleteLine(ctx context.Context, sessionID string, productID int64) error
	Clear(ctx context.Context, sessionID string) error
}

// ProductReader is the slice of the catalog the cart needs.
type ProductReader interface {
	ActiveByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error)
}

type Service struct {
	Store    Store
	Products ProductReader
}

func (s *Service) Load(ctx context.Context, sessionID string) (Cart, error) {
	lines, err := s.Store.Load(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}
	return Cart{SessionID: sessionID, Lines: lines}, nil
}

// Add puts a product in the cart, clamped server-side to available stock.
// With override the quantity replaces the stored one, otherwise it
// accumulates. Zero stock removes the line entirely.
func (s *Service) Add(ctx context.Context, sessionID string, product *catalog.Product, quantity int, override bool) (AddResult, error) {
	lines, err := s.Store.Load(ctx, sessionID)
	if err != nil {
		return AddResult{}, err
	}

	current := lines[product.ID].Qty
	requested := quantity
	if requested < 1 {
		requested = 1
	}

	desired := requested
	if !override {
		desired = current + requested
	}

	maxStock := product.Stock
	if maxStock <= 0 {
		// can't keep it in the cart
		if err := s.Store.DeleteLine(ctx, sessionID, product.ID); err != nil {
			return AddResult{}, err
		}
		return AddResult{Requested: desired, Final: 0, MaxStock: maxStock, Clamped: true, Removed: true}, nil
	}

	final := desired
	clamped := false
	if final > maxStock {
		final = maxStock
		clamped = true
	}
	if final < 1 {
		final = 1
	}

	line := lines[product.ID]
	if line.Qty == 0 && line.UnitPrice.IsZero() {
		line.UnitPrice = product.Price
	}
	line.Qty = final

	if err := s.Store.SetLine(ctx, sessionID, product.ID, line); err != nil {
		return AddResult{}, err
	}
	return AddResult{Requested: desired, Final: final, MaxStock: maxStock, Clamped: clamped, Removed: false}, nil
}

func (s *Service) Remove(ctx context.Context, sessionID string, productID int64) error {
	return s.Store.DeleteLine(ctx, sessionID, productID)
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.Store.Clear(ctx, sessionID)
}

// Items joins the stored lines against active products only. Lines whose
// product was deactivated stay in storage but are excluded here.
func (s *Service) Items(ctx context.Context, c Cart) ([]Item, error) {
	if len(c.Lines) == 0 {
		return nil, nil
	}
	products, err := s.Products.ActiveByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(products))
	for _, p := range products {
		line, ok := c.Lines[p.ID]
		if !ok {
			continue
		}
		qty := decimal.NewFromInt(int64(line.Qty))
		items = append(items, Item{
			Product:    p,
			Qty:        line.Qty,
			UnitPrice:  line.UnitPrice,
			TotalPrice: line.UnitPrice.Mul(qty),
			MaxQty:     p.Stock,
		})
	}
	return items, nil
}
