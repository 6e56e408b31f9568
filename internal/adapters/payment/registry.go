// Package payment holds the provider registry the settlement engine resolves
// gateways from. Provider adapters live in the stripe and razorpay subpackages.
package payment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"eventsettlement/internal/domain"
)

// Registry maps a stored payment method tag to its gateway.
type Registry struct {
	gateways map[domain.PaymentMethod]domain.PaymentGateway
}

// NewRegistry registers each gateway under its own Method().
func NewRegistry(gateways ...domain.PaymentGateway) *Registry {
	r := &Registry{gateways: make(map[domain.PaymentMethod]domain.PaymentGateway, len(gateways))}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

// Register adds or replaces the gateway for g.Method().
func (r *Registry) Register(g domain.PaymentGateway) {
	r.gateways[g.Method()] = g
}

// Get returns the gateway for method, or ErrInvalidPaymentMethod when none is configured.
func (r *Registry) Get(method domain.PaymentMethod) (domain.PaymentGateway, error) {
	if g, ok := r.gateways[method]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("%w: %q is not configured", domain.ErrInvalidPaymentMethod, method)
}

// MinorUnits converts a decimal amount into the provider's smallest currency unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
