package economy

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/talgya/substrate/internal/outcome"
)

// Location is a world position.
type Location struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// ShopItem is one stocked resource. Its price is set by the owner and is
// independent of the central market price.
type ShopItem struct {
	Stock int             `json:"stock"`
	Price decimal.Decimal `json:"price"`
}

// Shop is a player-owned storefront.
type Shop struct {
	ID       string               `json:"id"`
	Owner    string               `json:"owner"`
	Name     string               `json:"name"`
	Location Location             `json:"location"`
	Items    map[string]*ShopItem `json:"items"`
	Sales    decimal.Decimal      `json:"sales"`
	Open     bool                 `json:"open"`
}

// CreateShop opens a new, empty shop for owner.
func (m *Market) CreateShop(owner, name string, loc Location) (*Shop, error) {
	if owner == "" {
		return nil, outcome.Fail(outcome.KindInvalidRequest, "shop owner is required")
	}
	s := &Shop{
		ID:       uuid.NewString(),
		Owner:    owner,
		Name:     name,
		Location: loc,
		Items:    make(map[string]*ShopItem),
		Sales:    decimal.Zero,
		Open:     true,
	}
	m.Wallet(owner)
	m.shops[s.ID] = s
	return s, nil
}

// Shop looks up a shop.
func (m *Market) Shop(id string) (*Shop, bool) {
	s, ok := m.shops[id]
	return s, ok
}

// StockShop moves qty of resource from the owner's wallet into the shop and
// sets its price. qty may be zero to reprice only.
func (m *Market) StockShop(shopID, resource string, qty int, price decimal.Decimal) error {
	s, ok := m.shops[shopID]
	if !ok {
		return outcome.Fail(outcome.KindNotFound, "shop %s", shopID)
	}
	if qty < 0 || price.IsNegative() || resource == "" {
		return outcome.Fail(outcome.KindInvalidRequest, "stock %d %q at %s", qty, resource, price)
	}
	if qty > 0 {
		if err := m.RemoveResource(s.Owner, resource, qty); err != nil {
			return err
		}
	}
	item, ok := s.Items[resource]
	if !ok {
		item = &ShopItem{}
		s.Items[resource] = item
	}
	item.Stock += qty
	item.Price = price
	return nil
}

// SetShopOpen opens or closes a shop.
func (m *Market) SetShopOpen(shopID string, open bool) error {
	s, ok := m.shops[shopID]
	if !ok {
		return outcome.Fail(outcome.KindNotFound, "shop %s", shopID)
	}
	s.Open = open
	return nil
}

// BuyFromShop sells qty of resource to buyer at the shop's price. The owner
// receives price×qty×(1-taxRate); the remainder goes to the treasury.
// Returns the total paid.
func (m *Market) BuyFromShop(buyer, shopID, resource string, qty int) (decimal.Decimal, error) {
	s, ok := m.shops[shopID]
	if !ok {
		return decimal.Zero, outcome.Fail(outcome.KindNotFound, "shop %s", shopID)
	}
	if !s.Open {
		return decimal.Zero, outcome.Fail(outcome.KindNotOpen, "shop %s is closed", shopID)
	}
	if qty <= 0 {
		return decimal.Zero, outcome.Fail(outcome.KindInvalidRequest, "quantity %d", qty)
	}
	item, ok := s.Items[resource]
	if !ok || !item.Price.IsPositive() {
		return decimal.Zero, outcome.Fail(outcome.KindNotFound, "shop %s has no price for %s", shopID, resource)
	}
	if item.Stock < qty {
		return decimal.Zero, outcome.Fail(outcome.KindInsufficientResources, "shop %s stocks %d %s", shopID, item.Stock, resource)
	}
	cost := item.Price.Mul(decimal.NewFromInt(int64(qty)))
	bw := m.Wallet(buyer)
	if !bw.CanAfford(cost) {
		return decimal.Zero, outcome.Fail(outcome.KindInsufficientFunds, "%s has %s, needs %s", buyer, bw.Coins, cost)
	}

	bw.spend(cost)
	bw.credit(resource, qty)
	item.Stock -= qty

	net := cost.Mul(decimal.NewFromFloat(1 - m.cfg.Currency.TaxRate))
	ow := m.Wallet(s.Owner)
	ow.Coins = ow.Coins.Add(net)
	m.treasury = m.treasury.Add(cost.Sub(net))
	s.Sales = s.Sales.Add(cost)

	m.recordFlow(resource, qty, Buy)
	return cost, nil
}

// Clone returns a deep copy of the shop.
func (s *Shop) Clone() Shop {
	c := *s
	c.Items = make(map[string]*ShopItem, len(s.Items))
	for id, it := range s.Items {
		item := *it
		c.Items[id] = &item
	}
	return c
}
