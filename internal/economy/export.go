package economy

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/talgya/substrate/internal/clock"
	"github.com/talgya/substrate/internal/entropy"
	"github.com/talgya/substrate/internal/persistence/snapshot"
	"github.com/talgya/substrate/internal/timers"
)

// Export captures the market as an ordered snapshot section.
func (m *Market) Export() snapshot.MarketV1 {
	out := snapshot.MarketV1{Treasury: m.treasury}

	for _, id := range m.ResourceIDs() {
		r := m.resources[id]
		out.Resources = append(out.Resources, snapshot.ResourceV1{
			ID:           r.ID,
			BasePrice:    r.BasePrice,
			Volatility:   r.Volatility,
			Supply:       r.Supply,
			Demand:       r.Demand,
			CurrentPrice: r.Price,
			History:      append([]float64(nil), r.History...),
			Volume:       r.Volume,
		})
	}

	for _, owner := range sortedKeys(m.wallets) {
		w := m.wallets[owner]
		out.Wallets = append(out.Wallets, snapshot.WalletV1{
			Owner:       w.Owner,
			Coins:       w.Coins,
			Resources:   ExportQuantities(w.Resources),
			TradedValue: w.TradedValue,
			Reputation:  w.Reputation,
		})
	}

	for _, id := range sortedKeys(m.offers) {
		o := m.offers[id]
		out.Offers = append(out.Offers, snapshot.OfferV1{
			ID:          o.ID,
			Seller:      o.Seller,
			Offered:     snapshot.QuantityV1{Resource: o.Offered.Resource, Qty: o.Offered.Qty},
			Requested:   snapshot.QuantityV1{Resource: o.Requested.Resource, Qty: o.Requested.Qty},
			Status:      string(o.Status),
			CreatedAt:   o.CreatedAt,
			ExpiresAt:   o.ExpiresAt,
			Buyer:       o.Buyer,
			CompletedAt: o.CompletedAt,
		})
	}

	for _, id := range sortedKeys(m.shops) {
		s := m.shops[id]
		sv := snapshot.ShopV1{
			ID:       s.ID,
			Owner:    s.Owner,
			Name:     s.Name,
			Location: ExportLocation(s.Location),
			Sales:    s.Sales,
			Open:     s.Open,
		}
		for _, res := range sortedKeys(s.Items) {
			it := s.Items[res]
			sv.Items = append(sv.Items, snapshot.ShopItemV1{Resource: res, Stock: it.Stock, Price: it.Price})
		}
		out.Shops = append(out.Shops, sv)
	}

	for _, t := range m.trades {
		out.Trades = append(out.Trades, snapshot.TradeV1{
			OfferID:   t.OfferID,
			Seller:    t.Seller,
			Buyer:     t.Buyer,
			Offered:   snapshot.QuantityV1{Resource: t.Offered.Resource, Qty: t.Offered.Qty},
			Requested: snapshot.QuantityV1{Resource: t.Requested.Resource, Qty: t.Requested.Qty},
			Value:     t.Value,
			At:        t.At,
		})
	}
	return out
}

// Restore rebuilds a market from a snapshot section and re-arms expiry
// timers for offers that are still open.
func Restore(cfg Config, clk clock.Clock, rng entropy.Source, sched timers.Scheduler, snap snapshot.MarketV1) *Market {
	m := New(cfg, clk, rng, sched)
	m.treasury = snap.Treasury
	now := clk.Now()

	for _, r := range snap.Resources {
		m.resources[r.ID] = &Resource{
			ID:         r.ID,
			BasePrice:  r.BasePrice,
			Volatility: r.Volatility,
			Supply:     r.Supply,
			Demand:     r.Demand,
			Price:      r.CurrentPrice,
			History:    append([]float64(nil), r.History...),
			Volume:     r.Volume,
		}
	}

	for _, w := range snap.Wallets {
		m.wallets[w.Owner] = &Wallet{
			Owner:       w.Owner,
			Coins:       w.Coins,
			Resources:   RestoreQuantities(w.Resources),
			TradedValue: w.TradedValue,
			Reputation:  w.Reputation,
		}
	}

	for _, o := range snap.Offers {
		offer := &TradeOffer{
			ID:          o.ID,
			Seller:      o.Seller,
			Offered:     Lot{Resource: o.Offered.Resource, Qty: o.Offered.Qty},
			Requested:   Lot{Resource: o.Requested.Resource, Qty: o.Requested.Qty},
			Status:      OfferStatus(o.Status),
			CreatedAt:   o.CreatedAt,
			ExpiresAt:   o.ExpiresAt,
			Buyer:       o.Buyer,
			CompletedAt: o.CompletedAt,
		}
		m.offers[offer.ID] = offer
		if offer.Status == OfferOpen && sched != nil {
			sched.Schedule(timers.Rearm(offer.ExpiresAt, now), timers.KindOfferExpiry, offer.ID)
		}
	}

	for _, s := range snap.Shops {
		shop := &Shop{
			ID:       s.ID,
			Owner:    s.Owner,
			Name:     s.Name,
			Location: RestoreLocation(s.Location),
			Items:    make(map[string]*ShopItem, len(s.Items)),
			Sales:    s.Sales,
			Open:     s.Open,
		}
		for _, it := range s.Items {
			shop.Items[it.Resource] = &ShopItem{Stock: it.Stock, Price: it.Price}
		}
		m.shops[shop.ID] = shop
	}

	for _, t := range snap.Trades {
		m.trades = append(m.trades, TradeRecord{
			OfferID:   t.OfferID,
			Seller:    t.Seller,
			Buyer:     t.Buyer,
			Offered:   Lot{Resource: t.Offered.Resource, Qty: t.Offered.Qty},
			Requested: Lot{Resource: t.Requested.Resource, Qty: t.Requested.Qty},
			Value:     t.Value,
			At:        t.At,
		})
	}
	return m
}

// ExportCurrency captures the currency configuration.
func ExportCurrency(c Currency) snapshot.CurrencyV1 {
	return snapshot.CurrencyV1{Name: c.Name, Symbol: c.Symbol, StartingBalance: c.StartingBalance, TaxRate: c.TaxRate}
}

// RestoreCurrency is the inverse of ExportCurrency.
func RestoreCurrency(c snapshot.CurrencyV1) Currency {
	bal := c.StartingBalance
	if bal.IsNegative() {
		bal = decimal.Zero
	}
	return Currency{Name: c.Name, Symbol: c.Symbol, StartingBalance: bal, TaxRate: c.TaxRate}
}

// ExportQuantities turns a resource map into a sorted, zero-free slice.
func ExportQuantities(in map[string]int) []snapshot.QuantityV1 {
	var out []snapshot.QuantityV1
	for _, k := range sortedKeys(in) {
		if in[k] == 0 {
			continue
		}
		out = append(out, snapshot.QuantityV1{Resource: k, Qty: in[k]})
	}
	return out
}

// RestoreQuantities always returns a non-nil map.
func RestoreQuantities(in []snapshot.QuantityV1) map[string]int {
	out := make(map[string]int, len(in))
	for _, q := range in {
		out[q.Resource] += q.Qty
	}
	return out
}

func ExportLocation(l Location) snapshot.LocationV1 {
	return snapshot.LocationV1{X: l.X, Y: l.Y, Z: l.Z}
}

func RestoreLocation(l snapshot.LocationV1) Location {
	return Location{X: l.X, Y: l.Y, Z: l.Z}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

