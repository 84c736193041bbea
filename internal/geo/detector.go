package geo

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
)

// Detection is the wire answer of the detect-country endpoint.
type Detection struct {
	Country      string           `json:"country"`
	Gateway      string           `json:"gateway"`
	Currency     string           `json:"currency"`
	Source       string           `json:"source"`
	ExchangeRate *decimal.Decimal `json:"exchangeRate,omitempty"`
}

const (
	sourceHeader   = "cf-ipcountry"
	sourceLanguage = "accept-language"
	sourcePinned   = "config"
	sourceDefault  = "default"
)

// mercadoPagoCountries are the markets billed in ARS through Mercado Pago.
// Everyone else goes through Stripe in USD.
var mercadoPagoCountries = map[string]bool{
	"AR": true,
}

type rateQuoter interface {
	USDToARS(ctx context.Context) decimal.Decimal
}

// Detector maps request origin hints onto a payment gateway and currency.
type Detector struct {
	useOnlyMercadoPago bool
	rates              rateQuoter
}

func NewDetector(useOnlyMercadoPago bool, rates rateQuoter) *Detector {
	return &Detector{useOnlyMercadoPago: useOnlyMercadoPago, rates: rates}
}

// Detect resolves gateway and currency from the CF-IPCountry header first,
// the Accept-Language header second. The UseOnlyMercadoPago flag pins the
// answer to mercadopago/ARS regardless of origin.
func (d *Detector) Detect(ctx context.Context, ipCountry, acceptLanguage string) Detection {
	country, source := resolveCountry(ipCountry, acceptLanguage)

	if d.useOnlyMercadoPago {
		if country == "" {
			country = "AR"
		}
		return d.finish(ctx, Detection{Country: country, Source: sourcePinned}, true)
	}

	mp := mercadoPagoCountries[country]
	return d.finish(ctx, Detection{Country: country, Source: source}, mp)
}

func (d *Detector) finish(ctx context.Context, det Detection, mercadoPago bool) Detection {
	if mercadoPago {
		det.Gateway = string(enums.PaymentGatewayMercadoPago)
		det.Currency = "ARS"
		if d.rates != nil {
			rate := d.rates.USDToARS(ctx)
			det.ExchangeRate = &rate
		}
		return det
	}
	det.Gateway = string(enums.PaymentGatewayStripe)
	det.Currency = "USD"
	return det
}

func resolveCountry(ipCountry, acceptLanguage string) (string, string) {
	country := strings.ToUpper(strings.TrimSpace(ipCountry))
	// Cloudflare uses XX for unknown and T1 for Tor exits.
	if country != "" && country != "XX" && country != "T1" {
		return country, sourceHeader
	}
	if country := countryFromLanguage(acceptLanguage); country != "" {
		return country, sourceLanguage
	}
	return "", sourceDefault
}

// countryFromLanguage pulls the region subtag out of the first language range,
// so "es-AR,es;q=0.9" resolves to AR.
func countryFromLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		lang := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		pieces := strings.Split(lang, "-")
		if len(pieces) < 2 {
			continue
		}
		region := strings.ToUpper(pieces[len(pieces)-1])
		if len(region) == 2 {
			return region
		}
	}
	return ""
}
