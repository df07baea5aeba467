package config

// PricingConfig carries the raw rental pricing knobs.  They are validated
// when converted into pricing.Params.
type PricingConfig struct {
	FeeBps           int64
	FeeMode          string // "after" | "split"
	RateEncoding     string // "fixed18" | "raw"
	MinRentalSeconds int64
	MinPaymentWei    string
}

func LoadPricingConfig() PricingConfig {
	return PricingConfig{
		FeeBps:           int64(envInt("PLATFORM_FEE_BPS", 300)),
		FeeMode:          envStr("FEE_MODE", "after"),
		RateEncoding:     envStr("RATE_ENCODING", "fixed18"),
		MinRentalSeconds: int64(envInt("MIN_RENTAL_SECONDS", 3600)),
		MinPaymentWei:    envStr("MIN_PAYMENT_WEI", "10000000000000000"),
	}
}
