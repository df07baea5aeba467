package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/chain"
	"github.com/iliyamo/adspace-marketplace/internal/model"
	"github.com/iliyamo/adspace-marketplace/internal/pricing"
	"github.com/iliyamo/adspace-marketplace/internal/queue"
)

// PriceQuote is a pricing.Quote rendered for clients: USD as decimals, wei
// as decimal strings.
type PriceQuote struct {
	TokenID         uint64 `json:"token_id"`
	StartTime       int64  `json:"start_time"`
	EndTime         int64  `json:"end_time"`
	DurationSeconds int64  `json:"duration_seconds"`
	HourlyRateUSD   string `json:"hourly_rate_usd"`
	TotalUSD        string `json:"total_usd"`
	PublisherUSD    string `json:"publisher_usd"`
	FeeUSD          string `json:"fee_usd"`
	FeeBps          int64  `json:"fee_bps"`
	FeeMode         string `json:"fee_mode"`
	BaseWei         string `json:"base_wei"`
	FeeWei          string `json:"fee_wei"`
	TotalWei        string `json:"total_wei"`
	TotalETH        string `json:"total_eth"`
	Clamped         bool   `json:"clamped"`

	value *big.Int
}

// Value is the wei amount to attach to the rent transaction.
func (q *PriceQuote) Value() *big.Int { return new(big.Int).Set(q.value) }

func newPriceQuote(tokenID uint64, start, end int64, q *pricing.Quote) *PriceQuote {
	return &PriceQuote{
		TokenID:         tokenID,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: q.DurationSeconds,
		HourlyRateUSD:   pricing.FormatUnits(q.HourlyRateUSD, 18),
		TotalUSD:        pricing.FormatUnits(q.TotalUSD, 18),
		PublisherUSD:    pricing.FormatUnits(q.PublisherUSD, 18),
		FeeUSD:          pricing.FormatUnits(q.FeeUSD, 18),
		FeeBps:          q.FeeBps.Int64(),
		FeeMode:         string(q.Mode),
		BaseWei:         q.BaseWei.String(),
		FeeWei:          q.FeeWei.String(),
		TotalWei:        q.TotalWei.String(),
		TotalETH:        pricing.FormatUnits(q.TotalWei, 18),
		Clamped:         q.Clamped,
		value:           q.TotalWei,
	}
}

func checkWindow(start, end int64) error {
	if start <= 0 || end <= 0 {
		return invalid("start_time/end_time", "must be unix seconds")
	}
	if end <= start {
		return invalid("end_time", "must be after start_time")
	}
	return nil
}

// Quote prices renting token id over [start, end) at its on-chain rate.
func (m *Marketplace) Quote(ctx context.Context, id uint64, start, end int64) (*PriceQuote, error) {
	if err := checkWindow(start, end); err != nil {
		return nil, err
	}
	_, q, err := m.quote(ctx, id, start, end)
	return q, err
}

func (m *Marketplace) quote(ctx context.Context, id uint64, start, end int64) (model.AdSpace, *PriceQuote, error) {
	if n, err := m.nextTokenID(ctx); err == nil && id >= n {
		return model.AdSpace{}, nil, ErrNotFound
	}
	cctx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()
	space, err := m.chain.AdSpace(cctx, id)
	if err != nil {
		return space, nil, upstream("getAdSpace", err)
	}
	if isZeroAddress(space.Owner) {
		return space, nil, ErrNotFound
	}
	q, err := m.calc.Quote(cctx, space.HourlyRentalRate, start, end)
	if err != nil {
		return space, nil, upstream("price", err)
	}
	return space, newPriceQuote(id, start, end, q), nil
}

// RentRequest describes a rental.  MaxValueWei, when set, aborts the rental
// if the quoted price exceeds it.
type RentRequest struct {
	StartTime     int64  `json:"start_time"`
	EndTime       int64  `json:"end_time"`
	WebsiteURL    string `json:"website_url"`
	AdMetadataURI string `json:"ad_metadata_uri"`
	MaxValueWei   string `json:"max_value_wei,omitempty"`
}

// RentResult reports a mined rental.
type RentResult struct {
	Rental      model.RentalRecord `json:"rental"`
	Quote       *PriceQuote        `json:"quote"`
	TxHash      string             `json:"tx_hash"`
	BlockNumber uint64             `json:"block_number"`
}

// Rent quotes the window, sends rentAdSpace with the quoted value and
// records the outcome in the ledger.
func (m *Marketplace) Rent(ctx context.Context, userID string, id uint64, req RentRequest) (*RentResult, error) {
	req.WebsiteURL = strings.TrimSpace(req.WebsiteURL)
	req.AdMetadataURI = strings.TrimSpace(req.AdMetadataURI)
	if err := checkWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	now := m.now()
	if req.EndTime <= now.Unix() {
		return nil, invalid("end_time", "is in the past")
	}
	if err := checkWebURL("website_url", req.WebsiteURL); err != nil {
		return nil, err
	}
	if err := checkMetadataURI("ad_metadata_uri", req.AdMetadataURI); err != nil {
		return nil, err
	}
	var maxValue *big.Int
	if req.MaxValueWei != "" {
		v, ok := new(big.Int).SetString(req.MaxValueWei, 10)
		if !ok || v.Sign() <= 0 {
			return nil, invalid("max_value_wei", "must be a positive integer")
		}
		maxValue = v
	}
	if !m.chain.CanWrite() {
		return nil, ErrReadOnly
	}

	space, q, err := m.quote(ctx, id, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if space.Status == model.StatusPaused {
		return nil, invalid("", "ad space is paused")
	}
	value := q.Value()
	if maxValue != nil && value.Cmp(maxValue) > 0 {
		return nil, invalid("max_value_wei", fmt.Sprintf("quoted price %s wei exceeds limit", value))
	}

	rec := model.RentalRecord{
		UserID:        userID,
		TokenID:       id,
		StartTime:     time.Unix(req.StartTime, 0).UTC(),
		EndTime:       time.Unix(req.EndTime, 0).UTC(),
		WebsiteURL:    req.WebsiteURL,
		AdMetadataURI: req.AdMetadataURI,
		ValueWei:      value.String(),
	}
	if m.rentals != nil {
		if _, err := m.rentals.Create(ctx, &rec); err != nil {
			return nil, fmt.Errorf("record rental: %w", err)
		}
	}

	res, err := m.chain.Rent(ctx, id, req.StartTime, req.EndTime, req.WebsiteURL, req.AdMetadataURI, value)
	if err != nil {
		terr := txError("rentAdSpace", res, err)
		m.settle(ctx, &rec, res, terr)
		return nil, terr
	}
	m.settle(ctx, &rec, res, nil)
	// the caller may have gone away while the receipt was awaited
	ctx = context.WithoutCancel(ctx)
	m.cache.Invalidate(ctx)
	m.log.Info("ad space rented",
		zap.Uint64("token_id", id), zap.String("tx", rec.TxHash), zap.String("value_wei", rec.ValueWei))

	if m.events != nil {
		renter, _ := m.chain.Operator()
		ev := queue.AdSpaceRentedEvent{
			EventID:       queue.NewEventID(),
			TokenID:       id,
			UserID:        userID,
			Renter:        renter.Hex(),
			StartTime:     req.StartTime,
			EndTime:       req.EndTime,
			WebsiteURL:    req.WebsiteURL,
			AdMetadataURI: req.AdMetadataURI,
			ValueWei:      rec.ValueWei,
			TxHash:        rec.TxHash,
			RentedAt:      queue.Timestamp(m.now()),
		}
		if err := m.events.PublishRented(ctx, ev); err != nil {
			m.log.Warn("publish rented event failed", zap.Error(err))
		}
	}
	return &RentResult{Rental: rec, Quote: q, TxHash: rec.TxHash, BlockNumber: res.BlockNumber}, nil
}

// settle moves the ledger row to its final status.  A transaction that was
// sent but not seen mined keeps the row SUBMITTED with its hash.  Ledger
// failures are logged since the chain already holds the outcome.
func (m *Marketplace) settle(ctx context.Context, rec *model.RentalRecord, res *chain.TxResult, txErr error) {
	if res != nil {
		rec.TxHash = res.Hash.Hex()
	}
	te, _ := txErr.(*TxError)
	pending := te != nil && te.Pending() && rec.TxHash != ""
	switch {
	case pending:
		rec.Status = model.RentalSubmitted
	case txErr != nil:
		rec.Status = model.RentalFailed
		reason := txErr.Error()
		if te != nil {
			reason = te.Reason()
		}
		rec.FailureReason = &reason
	default:
		rec.Status = model.RentalConfirmed
	}
	if m.rentals == nil || rec.ID == 0 {
		return
	}
	// the request context may already be cancelled after a long wait
	ctx = context.WithoutCancel(ctx)
	var err error
	switch rec.Status {
	case model.RentalSubmitted:
		err = m.rentals.MarkSubmitted(ctx, rec.ID, rec.TxHash)
	case model.RentalFailed:
		err = m.rentals.MarkFailed(ctx, rec.ID, rec.TxHash, *rec.FailureReason)
	default:
		err = m.rentals.MarkConfirmed(ctx, rec.ID, rec.TxHash)
	}
	if err != nil {
		m.log.Error("rental ledger update failed", zap.Uint64("rental_id", rec.ID), zap.Error(err))
	}
}

// MyRentals lists the ledger rows of a user, newest first.
func (m *Marketplace) MyRentals(ctx context.Context, userID string, limit int) ([]model.RentalRecord, error) {
	if m.rentals == nil {
		return []model.RentalRecord{}, nil
	}
	return m.rentals.ListByUser(ctx, userID, limit)
}
