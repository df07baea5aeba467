// Package pricing turns a listed hourly rate and a rental window into the
// ETH amount that must be attached to a rentAdSpace transaction.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// FeeMode selects where the platform fee is taken.
type FeeMode string

const (
	// FeeAfterConversion converts the full USD amount and adds the fee on
	// top of the resulting wei.
	FeeAfterConversion FeeMode = "after"
	// FeeSplitBeforeConversion splits the USD amount into publisher and fee
	// shares and converts each share separately.
	FeeSplitBeforeConversion FeeMode = "split"
)

// RateEncoding describes how the contract stores the hourly rate.
type RateEncoding string

const (
	RateFixed18 RateEncoding = "fixed18" // 18-decimal fixed point
	RateRaw     RateEncoding = "raw"     // whole USD
)

var (
	// SecondsPerHour is the rate denominator.
	SecondsPerHour = big.NewInt(3600)

	// BpsBase is the denominator for basis-point math.
	BpsBase = big.NewInt(10000)

	// MaxFeeBps caps the fee at 100%.
	MaxFeeBps = big.NewInt(10000)

	// DefaultFeeBps is 300 basis points (3%).
	DefaultFeeBps = big.NewInt(300)

	// DefaultMinRentalSeconds is one hour.
	DefaultMinRentalSeconds int64 = 3600

	// DefaultMinimumPayment is 0.01 ETH expressed in wei.
	DefaultMinimumPayment = new(big.Int).Div(big.NewInt(params.Ether), big.NewInt(100))

	usdScale = big.NewInt(params.Ether) // 1e18
)

var (
	ErrFeeTooHigh      = errors.New("pricing: fee exceeds 10000 bps")
	ErrNegativeFee     = errors.New("pricing: fee cannot be negative")
	ErrNegativeRate    = errors.New("pricing: hourly rate cannot be negative")
	ErrUnknownFeeMode  = errors.New("pricing: unknown fee mode")
	ErrUnknownEncoding = errors.New("pricing: unknown rate encoding")
	ErrNilOracle       = errors.New("pricing: oracle is required")
)

// Oracle converts an 18-decimal USD amount into wei.  On-chain this is the
// contract's price-feed backed getETHAmountForUSD.
type Oracle interface {
	ETHForUSD(ctx context.Context, usdAmount *big.Int) (*big.Int, error)
}

// Params holds the pricing policy.
type Params struct {
	FeeBps           *big.Int
	Mode             FeeMode
	Encoding         RateEncoding
	MinRentalSeconds int64
	MinimumPayment   *big.Int // substituted for non-positive results
}

// DefaultParams returns 3% charged after conversion, 18-decimal rates, a
// one hour minimum and a 0.01 ETH floor.
func DefaultParams() Params {
	return Params{
		FeeBps:           new(big.Int).Set(DefaultFeeBps),
		Mode:             FeeAfterConversion,
		Encoding:         RateFixed18,
		MinRentalSeconds: DefaultMinRentalSeconds,
		MinimumPayment:   new(big.Int).Set(DefaultMinimumPayment),
	}
}

// NewParams validates raw configuration values.
func NewParams(feeBps int64, mode, encoding string, minRentalSeconds int64, minPaymentWei string) (Params, error) {
	p := DefaultParams()
	fee := big.NewInt(feeBps)
	if fee.Sign() < 0 {
		return Params{}, ErrNegativeFee
	}
	if fee.Cmp(MaxFeeBps) > 0 {
		return Params{}, ErrFeeTooHigh
	}
	p.FeeBps = fee

	switch FeeMode(mode) {
	case FeeAfterConversion, FeeSplitBeforeConversion:
		p.Mode = FeeMode(mode)
	default:
		return Params{}, fmt.Errorf("%w: %q", ErrUnknownFeeMode, mode)
	}
	switch RateEncoding(encoding) {
	case RateFixed18, RateRaw:
		p.Encoding = RateEncoding(encoding)
	default:
		return Params{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, encoding)
	}
	if minRentalSeconds > 0 {
		p.MinRentalSeconds = minRentalSeconds
	}
	if minPaymentWei != "" {
		v, ok := new(big.Int).SetString(minPaymentWei, 10)
		if !ok || v.Sign() <= 0 {
			return Params{}, fmt.Errorf("pricing: invalid minimum payment %q", minPaymentWei)
		}
		p.MinimumPayment = v
	}
	return p, nil
}

// Quote carries every intermediate figure of a rental price computation so
// callers can show the breakdown.  USD amounts use 18 decimals.
type Quote struct {
	DurationSeconds int64
	HourlyRateUSD   *big.Int
	TotalUSD        *big.Int
	PublisherUSD    *big.Int
	FeeUSD          *big.Int
	BaseWei         *big.Int
	FeeWei          *big.Int
	TotalWei        *big.Int
	FeeBps          *big.Int
	Mode            FeeMode
	Clamped         bool // TotalWei was replaced by the minimum payment
}

// Calculator computes rental quotes against an Oracle.
type Calculator struct {
	oracle Oracle
	params Params
}

// NewCalculator wires a calculator to its oracle.
func NewCalculator(oracle Oracle, p Params) (*Calculator, error) {
	if oracle == nil {
		return nil, ErrNilOracle
	}
	return &Calculator{oracle: oracle, params: p}, nil
}

// Params returns a copy of the calculator's policy.
func (c *Calculator) Params() Params { return c.params }

// Duration clamps the requested window to the minimum rental length.
func (c *Calculator) Duration(start, end int64) int64 {
	d := end - start
	if d < c.params.MinRentalSeconds {
		return c.params.MinRentalSeconds
	}
	return d
}

// NormalizeRate scales a contract rate to 18 decimals.
func (c *Calculator) NormalizeRate(hourlyRate *big.Int) *big.Int {
	if c.params.Encoding == RateRaw {
		return new(big.Int).Mul(hourlyRate, usdScale)
	}
	return new(big.Int).Set(hourlyRate)
}

// TotalUSD returns rate18 * duration / 3600.
func (c *Calculator) TotalUSD(hourlyRate *big.Int, durationSeconds int64) *big.Int {
	total := new(big.Int).Mul(c.NormalizeRate(hourlyRate), big.NewInt(durationSeconds))
	return total.Div(total, SecondsPerHour)
}

// SplitFee splits a USD total into (publisher, fee).  The shares always sum
// back to total.
func (c *Calculator) SplitFee(total *big.Int) (publisher, fee *big.Int) {
	fee = new(big.Int).Mul(total, c.params.FeeBps)
	fee.Div(fee, BpsBase)
	publisher = new(big.Int).Sub(total, fee)
	return publisher, fee
}

// Quote prices a rental of hourlyRate from start to end (unix seconds).
// Oracle failures are returned; a non-positive result is replaced by the
// minimum payment.
func (c *Calculator) Quote(ctx context.Context, hourlyRate *big.Int, start, end int64) (*Quote, error) {
	if hourlyRate == nil || hourlyRate.Sign() < 0 {
		return nil, ErrNegativeRate
	}
	q := &Quote{
		DurationSeconds: c.Duration(start, end),
		HourlyRateUSD:   c.NormalizeRate(hourlyRate),
		FeeBps:          new(big.Int).Set(c.params.FeeBps),
		Mode:            c.params.Mode,
	}
	q.TotalUSD = c.TotalUSD(hourlyRate, q.DurationSeconds)

	switch c.params.Mode {
	case FeeSplitBeforeConversion:
		q.PublisherUSD, q.FeeUSD = c.SplitFee(q.TotalUSD)
		base, err := c.convert(ctx, q.PublisherUSD)
		if err != nil {
			return nil, err
		}
		fee, err := c.convert(ctx, q.FeeUSD)
		if err != nil {
			return nil, err
		}
		q.BaseWei, q.FeeWei = base, fee
	default:
		q.PublisherUSD, q.FeeUSD = new(big.Int).Set(q.TotalUSD), new(big.Int)
		base, err := c.convert(ctx, q.TotalUSD)
		if err != nil {
			return nil, err
		}
		fee := new(big.Int).Mul(base, c.params.FeeBps)
		fee.Div(fee, BpsBase)
		q.BaseWei, q.FeeWei = base, fee
	}

	q.TotalWei = new(big.Int).Add(q.BaseWei, q.FeeWei)
	if q.TotalWei.Sign() <= 0 {
		q.TotalWei = new(big.Int).Set(c.params.MinimumPayment)
		q.Clamped = true
	}
	return q, nil
}

func (c *Calculator) convert(ctx context.Context, usd *big.Int) (*big.Int, error) {
	if usd.Sign() == 0 {
		return new(big.Int), nil
	}
	wei, err := c.oracle.ETHForUSD(ctx, usd)
	if err != nil {
		return nil, fmt.Errorf("pricing: usd to eth conversion: %w", err)
	}
	return wei, nil
}

// EncodeRate converts a decimal USD-per-hour string into the contract's
// representation.  Raw encoding accepts whole dollars only.
func (c *Calculator) EncodeRate(usd string) (*big.Int, error) {
	if c.params.Encoding == RateRaw {
		return ParseUnits(usd, 0)
	}
	return ParseUnits(usd, 18)
}

// FormatRate renders a contract rate as decimal USD.
func (c *Calculator) FormatRate(hourlyRate *big.Int) string {
	return FormatUnits(c.NormalizeRate(orZero(hourlyRate)), 18)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
