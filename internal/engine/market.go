// Market operations, serialized through the simulation.

package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/talgya/substrate/internal/economy"
)

// CalculatePrice re-prices a resource.
func (s *Simulation) CalculatePrice(resource string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Market.CalculatePrice(resource)
}

// UpdateMarketData records a supply or demand movement.
func (s *Simulation) UpdateMarketData(resource string, qty int, side economy.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Market.UpdateMarketData(resource, qty, side)
}

// Prices returns the current price of every resource.
func (s *Simulation) Prices() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Market.Prices()
}

// Wallet returns a copy of owner's wallet, creating it on first reference.
func (s *Simulation) Wallet(owner string) economy.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Market.Wallet(owner).Clone()
}

// Deposit credits coins to owner.
func (s *Simulation) Deposit(owner string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Market.Deposit(owner, amount)
}

// Withdraw debits coins from owner.
func (s *Simulation) Withdraw(owner string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Market.Withdraw(owner, amount)
}

// AddResource credits a resource to owner.
func (s *Simulation) AddResource(owner, resource string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Market.AddResource(owner, resource, qty)
}

// RemoveResource debits a resource from owner.
func (s *Simulation) RemoveResource(owner, resource string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Market.RemoveResource(owner, resource, qty)
}

// CreateTradeOffer escrows the offered lot and opens an offer.
func (s *Simulation) CreateTradeOffer(seller string, offered, requested economy.Lot, ttl time.Duration) (economy.TradeOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.world.Market.CreateTradeOffer(seller, offered, requested, ttl)
	if err != nil {
		return economy.TradeOffer{}, err
	}
	return *o, nil
}

// AcceptTradeOffer completes an open offer for buyer.
func (s *Simulation) AcceptTradeOffer(buyer, offerID string) (economy.TradeOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.world.Market.AcceptTradeOffer(buyer, offerID)
	if err != nil {
		return economy.TradeOffer{}, err
	}
	s.record("economy", fmt.Sprintf("%s traded %d %s to %s for %d %s",
		o.Seller, o.Offered.Qty, o.Offered.Resource, o.Buyer, o.Requested.Qty, o.Requested.Resource))
	return *o, nil
}

// CancelTradeOffer cancels an open offer and returns its escrow.
func (s *Simulation) CancelTradeOffer(offerID string) (economy.TradeOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.world.Market.CancelTradeOffer(offerID)
	if err != nil {
		return economy.TradeOffer{}, err
	}
	return *o, nil
}

// OpenOffers returns copies of every open offer.
func (s *Simulation) OpenOffers() []economy.TradeOffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	open := s.world.Market.OpenOffers()
	out := make([]economy.TradeOffer, 0, len(open))
	for _, o := range open {
		out = append(out, *o)
	}
	return out
}

// ExpireOffers sweeps open offers past their expiry.
func (s *Simulation) ExpireOffers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Market.ExpireOffers()
}

// FindTradeOpportunities returns arbitrage signals and fillable offers.
func (s *Simulation) FindTradeOpportunities(player string) []economy.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Market.FindTradeOpportunities(player)
}

// CreateShop opens a shop for owner.
func (s *Simulation) CreateShop(owner, name string, loc economy.Location) (economy.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.world.Market.CreateShop(owner, name, loc)
	if err != nil {
		return economy.Shop{}, err
	}
	return sh.Clone(), nil
}

// StockShop moves stock from the owner's wallet into a shop at price.
func (s *Simulation) StockShop(shopID, resource string, qty int, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Market.StockShop(shopID, resource, qty, price)
}

// SetShopOpen opens or closes a shop.
func (s *Simulation) SetShopOpen(shopID string, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Market.SetShopOpen(shopID, open)
}

// BuyFromShop purchases qty of resource from a shop and returns the cost.
func (s *Simulation) BuyFromShop(buyer, shopID, resource string, qty int) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cost, err := s.world.Market.BuyFromShop(buyer, shopID, resource, qty)
	if err != nil {
		return decimal.Zero, err
	}
	s.record("economy", fmt.Sprintf("%s bought %d %s from shop %s for %s", buyer, qty, resource, shopID, cost))
	return cost, nil
}
