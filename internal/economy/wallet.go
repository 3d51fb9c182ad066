package economy

import (
	"github.com/shopspring/decimal"

	"github.com/talgya/substrate/internal/outcome"
)

// Wallet is an agent's coins, resources and trading record.
type Wallet struct {
	Owner       string          `json:"owner"`
	Coins       decimal.Decimal `json:"coins"`
	Resources   map[string]int  `json:"resources"`
	TradedValue float64         `json:"traded_value"`
	Reputation  int             `json:"reputation"`
}

// Has reports whether the wallet holds at least qty of resource.
func (w *Wallet) Has(resource string, qty int) bool {
	return w.Resources[resource] >= qty
}

// CanAfford reports whether the wallet holds at least amount coins.
func (w *Wallet) CanAfford(amount decimal.Decimal) bool {
	return w.Coins.GreaterThanOrEqual(amount)
}

func (w *Wallet) credit(resource string, qty int) {
	w.Resources[resource] += qty
}

func (w *Wallet) debit(resource string, qty int) {
	left := w.Resources[resource] - qty
	outcome.Invariant(left >= 0, "wallet %s %s would go to %d", w.Owner, resource, left)
	if left == 0 {
		delete(w.Resources, resource)
		return
	}
	w.Resources[resource] = left
}

func (w *Wallet) spend(amount decimal.Decimal) {
	w.Coins = w.Coins.Sub(amount)
	outcome.Invariant(!w.Coins.IsNegative(), "wallet %s coins negative: %s", w.Owner, w.Coins)
}

// Wallet returns owner's wallet, creating it with the starting balance on
// first reference. Wallets are never deleted.
func (m *Market) Wallet(owner string) *Wallet {
	if w, ok := m.wallets[owner]; ok {
		return w
	}
	w := &Wallet{
		Owner:     owner,
		Coins:     m.cfg.Currency.StartingBalance,
		Resources: make(map[string]int),
	}
	m.wallets[owner] = w
	return w
}

// LookupWallet returns owner's wallet without creating one.
func (m *Market) LookupWallet(owner string) (*Wallet, bool) {
	w, ok := m.wallets[owner]
	return w, ok
}

// Balance returns owner's coin balance.
func (m *Market) Balance(owner string) decimal.Decimal {
	return m.Wallet(owner).Coins
}

// Deposit credits coins to owner.
func (m *Market) Deposit(owner string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return outcome.Fail(outcome.KindInvalidRequest, "negative deposit %s", amount)
	}
	w := m.Wallet(owner)
	w.Coins = w.Coins.Add(amount)
	return nil
}

// Withdraw debits coins from owner, failing InsufficientFunds when short.
func (m *Market) Withdraw(owner string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return outcome.Fail(outcome.KindInvalidRequest, "negative withdrawal %s", amount)
	}
	w := m.Wallet(owner)
	if !w.CanAfford(amount) {
		return outcome.Fail(outcome.KindInsufficientFunds, "%s has %s, needs %s", owner, w.Coins, amount)
	}
	w.spend(amount)
	return nil
}

// AddResource credits qty of resource to owner.
func (m *Market) AddResource(owner, resource string, qty int) error {
	if qty <= 0 || resource == "" {
		return outcome.Fail(outcome.KindInvalidRequest, "add %d %q", qty, resource)
	}
	m.Wallet(owner).credit(resource, qty)
	return nil
}

// RemoveResource debits qty of resource from owner.
func (m *Market) RemoveResource(owner, resource string, qty int) error {
	if qty <= 0 || resource == "" {
		return outcome.Fail(outcome.KindInvalidRequest, "remove %d %q", qty, resource)
	}
	w := m.Wallet(owner)
	if !w.Has(resource, qty) {
		return outcome.Fail(outcome.KindInsufficientResources, "%s has %d %s, needs %d", owner, w.Resources[resource], resource, qty)
	}
	w.debit(resource, qty)
	return nil
}

// Clone returns a deep copy of the wallet.
func (w *Wallet) Clone() Wallet {
	c := *w
	c.Resources = make(map[string]int, len(w.Resources))
	for k, v := range w.Resources {
		c.Resources[k] = v
	}
	return c
}
