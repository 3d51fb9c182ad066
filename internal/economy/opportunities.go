package economy

import "sort"

// Arbitrage thresholds relative to the trailing average.
const (
	BuyLowRatio   = 0.8
	SellHighRatio = 1.2
)

// SignalKind classifies a trade opportunity.
type SignalKind string

const (
	SignalBuyLow   SignalKind = "buy_low"
	SignalSellHigh SignalKind = "sell_high"
	SignalOffer    SignalKind = "offer"
)

// Opportunity is one recommendation for a player.
type Opportunity struct {
	Kind     SignalKind `json:"kind"`
	Resource string     `json:"resource"`
	Price    float64    `json:"price,omitempty"`
	Average  float64    `json:"average,omitempty"`
	OfferID  string     `json:"offer_id,omitempty"`
}

// FindTradeOpportunities returns arbitrage signals for every resource plus
// open offers from others that player can already fill.
func (m *Market) FindTradeOpportunities(player string) []Opportunity {
	var out []Opportunity
	for _, id := range m.ResourceIDs() {
		r := m.resources[id]
		avg := r.TrailingAverage()
		switch {
		case r.Price < BuyLowRatio*avg:
			out = append(out, Opportunity{Kind: SignalBuyLow, Resource: id, Price: r.Price, Average: avg})
		case r.Price > SellHighRatio*avg:
			out = append(out, Opportunity{Kind: SignalSellHigh, Resource: id, Price: r.Price, Average: avg})
		}
	}

	w := m.Wallet(player)
	var offers []Opportunity
	for _, o := range m.OpenOffers() {
		if o.Seller == player || !w.Has(o.Requested.Resource, o.Requested.Qty) {
			continue
		}
		offers = append(offers, Opportunity{Kind: SignalOffer, Resource: o.Offered.Resource, OfferID: o.ID})
	}
	sort.SliceStable(offers, func(i, j int) bool { return offers[i].Resource < offers[j].Resource })
	return append(out, offers...)
}
