package enums

import "fmt"

// PaymentGateway names the provider that owns a subscription's billing state.
type PaymentGateway string

const (
	PaymentGatewayStripe      PaymentGateway = "stripe"
	PaymentGatewayMercadoPago PaymentGateway = "mercadopago"
	PaymentGatewayManual      PaymentGateway = "manual"
)

var validPaymentGateways = []PaymentGateway{
	PaymentGatewayStripe,
	PaymentGatewayMercadoPago,
	PaymentGatewayManual,
}

// String implements fmt.Stringer.
func (g PaymentGateway) String() string {
	return string(g)
}

// IsValid reports whether the value is known.
func (g PaymentGateway) IsValid() bool {
	for _, candidate := range validPaymentGateways {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParsePaymentGateway converts raw input into a PaymentGateway.
func ParsePaymentGateway(value string) (PaymentGateway, error) {
	for _, candidate := range validPaymentGateways {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment gateway %q", value)
}
