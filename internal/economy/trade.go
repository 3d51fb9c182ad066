package economy

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/talgya/substrate/internal/outcome"
	"github.com/talgya/substrate/internal/timers"
)

// OfferStatus is the lifecycle state of a trade offer. Every status other
// than open is terminal.
type OfferStatus string

const (
	OfferOpen      OfferStatus = "open"
	OfferCompleted OfferStatus = "completed"
	OfferCancelled OfferStatus = "cancelled"
	OfferExpired   OfferStatus = "expired"
)

// Lot is a quantity of one resource.
type Lot struct {
	Resource string `json:"resource"`
	Qty      int    `json:"qty"`
}

// TradeOffer is a seller's standing offer. The offered lot is held in
// escrow from creation until the offer resolves.
type TradeOffer struct {
	ID          string      `json:"id"`
	Seller      string      `json:"seller"`
	Offered     Lot         `json:"offered"`
	Requested   Lot         `json:"requested"`
	Status      OfferStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Buyer       string      `json:"buyer,omitempty"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
}

// TradeRecord is an immutable entry in the trade history.
type TradeRecord struct {
	OfferID   string    `json:"offer_id"`
	Seller    string    `json:"seller"`
	Buyer     string    `json:"buyer"`
	Offered   Lot       `json:"offered"`
	Requested Lot       `json:"requested"`
	Value     float64   `json:"value"`
	At        time.Time `json:"at"`
}

// CreateTradeOffer escrows offered from the seller and opens an offer for
// requested. ttl <= 0 uses the configured default.
func (m *Market) CreateTradeOffer(seller string, offered, requested Lot, ttl time.Duration) (*TradeOffer, error) {
	if seller == "" || offered.Resource == "" || requested.Resource == "" {
		return nil, outcome.Fail(outcome.KindInvalidRequest, "seller and resources are required")
	}
	if offered.Qty <= 0 || requested.Qty <= 0 {
		return nil, outcome.Fail(outcome.KindInvalidRequest, "quantities must be positive")
	}
	w := m.Wallet(seller)
	if !w.Has(offered.Resource, offered.Qty) {
		return nil, outcome.Fail(outcome.KindInsufficientResources, "%s has %d %s, offers %d",
			seller, w.Resources[offered.Resource], offered.Resource, offered.Qty)
	}
	now := m.now()
	if lim := m.limiter(seller); lim != nil && !lim.AllowN(now, 1) {
		return nil, outcome.Fail(outcome.KindRateLimited, "%s is creating offers too quickly", seller)
	}
	if ttl <= 0 {
		ttl = m.cfg.OfferTTL
	}

	w.debit(offered.Resource, offered.Qty)
	o := &TradeOffer{
		ID:        uuid.NewString(),
		Seller:    seller,
		Offered:   offered,
		Requested: requested,
		Status:    OfferOpen,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	m.offers[o.ID] = o
	if m.sched != nil {
		m.sched.Schedule(o.ExpiresAt, timers.KindOfferExpiry, o.ID)
	}
	return o, nil
}

// AcceptTradeOffer completes an open offer for buyer. All checks run before
// any mutation. An offer found past its expiry is expired (escrow returned
// to the seller) and Expired is returned.
func (m *Market) AcceptTradeOffer(buyer, offerID string) (*TradeOffer, error) {
	o, ok := m.offers[offerID]
	if !ok {
		return nil, outcome.Fail(outcome.KindNotFound, "offer %s", offerID)
	}
	if o.Status != OfferOpen {
		return o, outcome.Fail(outcome.KindNotOpen, "offer %s is %s", offerID, o.Status)
	}
	now := m.now()
	if !now.Before(o.ExpiresAt) {
		m.expire(o)
		return o, outcome.Fail(outcome.KindExpired, "offer %s expired at %s", offerID, o.ExpiresAt.Format(time.RFC3339))
	}
	if buyer == o.Seller {
		return o, outcome.Fail(outcome.KindInvalidRequest, "seller cannot accept own offer")
	}
	bw := m.Wallet(buyer)
	if !bw.Has(o.Requested.Resource, o.Requested.Qty) {
		return o, outcome.Fail(outcome.KindInsufficientResources, "%s has %d %s, needs %d",
			buyer, bw.Resources[o.Requested.Resource], o.Requested.Resource, o.Requested.Qty)
	}
	sw := m.Wallet(o.Seller)

	bw.debit(o.Requested.Resource, o.Requested.Qty)
	bw.credit(o.Offered.Resource, o.Offered.Qty)
	sw.credit(o.Requested.Resource, o.Requested.Qty)

	m.recordFlow(o.Offered.Resource, o.Offered.Qty, Sell)
	m.recordFlow(o.Requested.Resource, o.Requested.Qty, Buy)

	value := m.lotValue(o.Offered)
	bw.Reputation++
	sw.Reputation++
	bw.TradedValue += value
	sw.TradedValue += value

	m.trades = append(m.trades, TradeRecord{
		OfferID:   o.ID,
		Seller:    o.Seller,
		Buyer:     buyer,
		Offered:   o.Offered,
		Requested: o.Requested,
		Value:     value,
		At:        now,
	})
	o.Status = OfferCompleted
	o.Buyer = buyer
	o.CompletedAt = now
	return o, nil
}

// CancelTradeOffer returns escrow to the seller of an open offer.
func (m *Market) CancelTradeOffer(offerID string) (*TradeOffer, error) {
	o, ok := m.offers[offerID]
	if !ok {
		return nil, outcome.Fail(outcome.KindNotFound, "offer %s", offerID)
	}
	if o.Status != OfferOpen {
		return o, outcome.Fail(outcome.KindNotOpen, "offer %s is %s", offerID, o.Status)
	}
	m.Wallet(o.Seller).credit(o.Offered.Resource, o.Offered.Qty)
	o.Status = OfferCancelled
	return o, nil
}

// ExpireOffer is the timer callback for one offer. It is a no-op unless the
// offer is still open and due.
func (m *Market) ExpireOffer(offerID string) bool {
	o, ok := m.offers[offerID]
	if !ok || o.Status != OfferOpen || m.now().Before(o.ExpiresAt) {
		return false
	}
	m.expire(o)
	return true
}

// ExpireOffers sweeps every open offer past its expiry and returns how many
// were expired.
func (m *Market) ExpireOffers() int {
	now := m.now()
	n := 0
	for _, o := range m.offers {
		if o.Status == OfferOpen && !now.Before(o.ExpiresAt) {
			m.expire(o)
			n++
		}
	}
	if n > 0 {
		slog.Debug("trade offers expired", "count", n)
	}
	return n
}

func (m *Market) expire(o *TradeOffer) {
	m.Wallet(o.Seller).credit(o.Offered.Resource, o.Offered.Qty)
	o.Status = OfferExpired
	if m.onExpire != nil {
		m.onExpire(o)
	}
}

// Offer returns an offer by id, expiring it first if it is overdue.
func (m *Market) Offer(offerID string) (*TradeOffer, error) {
	o, ok := m.offers[offerID]
	if !ok {
		return nil, outcome.Fail(outcome.KindNotFound, "offer %s", offerID)
	}
	if o.Status == OfferOpen && !m.now().Before(o.ExpiresAt) {
		m.expire(o)
	}
	return o, nil
}

// OpenOffers lists open offers oldest first, expiring overdue ones.
func (m *Market) OpenOffers() []*TradeOffer {
	m.ExpireOffers()
	var out []*TradeOffer
	for _, o := range m.offers {
		if o.Status == OfferOpen {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Trades returns the trade history, oldest first.
func (m *Market) Trades() []TradeRecord {
	return m.trades
}

func (m *Market) lotValue(l Lot) float64 {
	r, ok := m.resources[l.Resource]
	if !ok {
		return 0
	}
	return r.Price * float64(l.Qty)
}

func (m *Market) limiter(seller string) *rate.Limiter {
	if m.cfg.OffersPerMin <= 0 {
		return nil
	}
	lim, ok := m.limiters[seller]
	if !ok {
		burst := m.cfg.OfferBurst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(m.cfg.OffersPerMin/60), burst)
		m.limiters[seller] = lim
	}
	return lim
}
