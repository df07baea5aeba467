package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/chain"
	"github.com/iliyamo/adspace-marketplace/internal/ipfs"
	"github.com/iliyamo/adspace-marketplace/internal/model"
	"github.com/iliyamo/adspace-marketplace/internal/queue"
)

// DefaultExternalURLBase prefixes the external_url of minted metadata.
const DefaultExternalURLBase = "https://ads-protocol.io/adspace"

// MintRequest describes a new ad space.  ImageURL must point at an already
// pinned image (see Upload).
type MintRequest struct {
	WebsiteURL    string   `json:"website_url"`
	SpaceType     string   `json:"space_type"`
	SpaceID       string   `json:"space_id"`
	Category      string   `json:"category"`
	Height        uint64   `json:"height"`
	Width         uint64   `json:"width"`
	HourlyRateUSD string   `json:"hourly_rate_usd"`
	Tags          []string `json:"tags"`
	ImageURL      string   `json:"image_url"`
}

// MintResult reports a mined mint.
type MintResult struct {
	TokenID     uint64            `json:"token_id"`
	TokenURI    string            `json:"token_uri"`
	Metadata    *model.AdMetadata `json:"metadata"`
	TxHash      string            `json:"tx_hash"`
	BlockNumber uint64            `json:"block_number"`
}

func (r *MintRequest) normalize() error {
	r.WebsiteURL = strings.TrimSpace(r.WebsiteURL)
	r.SpaceType = strings.TrimSpace(r.SpaceType)
	r.SpaceID = strings.TrimSpace(r.SpaceID)
	r.Category = strings.TrimSpace(r.Category)
	r.HourlyRateUSD = strings.TrimSpace(r.HourlyRateUSD)
	r.ImageURL = strings.TrimSpace(r.ImageURL)

	if err := checkWebURL("website_url", r.WebsiteURL); err != nil {
		return err
	}
	switch {
	case r.SpaceType == "":
		return invalid("space_type", "is required")
	case r.SpaceID == "":
		return invalid("space_id", "is required")
	case r.Height == 0 || r.Width == 0:
		return invalid("height/width", "must be positive")
	case r.HourlyRateUSD == "":
		return invalid("hourly_rate_usd", "is required")
	case r.ImageURL == "":
		return invalid("image_url", "is required; upload the image first")
	}

	tags := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	r.Tags = tags
	return nil
}

func checkWebURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid(field, "must be an absolute http(s) URL")
	}
	return nil
}

func checkMetadataURI(field, raw string) error {
	if raw == "" {
		return invalid(field, "is required")
	}
	if strings.HasPrefix(raw, "ipfs://") && len(raw) > len("ipfs://") {
		return nil
	}
	if checkWebURL(field, raw) != nil {
		return invalid(field, "must be an ipfs:// or http(s) URI")
	}
	return nil
}

// BuildMetadata assembles the token metadata document for a mint.
func BuildMetadata(req MintRequest, tokenID uint64, externalBase string) model.AdMetadata {
	host := "Unknown"
	if u, err := url.Parse(req.WebsiteURL); err == nil && u.Host != "" {
		host = u.Host
	}
	rate, _ := strconv.ParseFloat(req.HourlyRateUSD, 64)
	return model.AdMetadata{
		Name:        fmt.Sprintf("AdSpace #%d - %s", tokenID, host),
		Description: fmt.Sprintf("This NFT represents a rentable banner space on %s, a platform for running ads.", req.WebsiteURL),
		Image:       req.ImageURL,
		ExternalURL: strings.TrimRight(externalBase, "/") + "/" + strconv.FormatUint(tokenID, 10),
		Attributes: []model.Attribute{
			{TraitType: "Website", Value: req.WebsiteURL},
			{TraitType: "Space Type", Value: req.SpaceType},
			{TraitType: "Category", Value: req.Category},
			{TraitType: "Ad Space ID", Value: req.SpaceID},
			{TraitType: "Height", Value: req.Height},
			{TraitType: "Width", Value: req.Width},
			{TraitType: "Hourly Rate (USD)", Value: rate},
			{TraitType: "Tags", Value: strings.Join(req.Tags, ", ")},
		},
	}
}

// Mint pins the token metadata and mints the ad space from the operator
// account.
func (m *Marketplace) Mint(ctx context.Context, userID string, req MintRequest) (*MintResult, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	rate, err := m.calc.EncodeRate(req.HourlyRateUSD)
	if err != nil {
		return nil, invalid("hourly_rate_usd", "must be a non-negative decimal amount")
	}
	if !m.chain.CanWrite() {
		return nil, ErrReadOnly
	}
	if m.pinner == nil || !m.pinner.Configured() {
		return nil, ErrPinningUnavailable
	}

	next, err := m.nextTokenID(ctx)
	if err != nil {
		return nil, fmt.Errorf("nextTokenId: %w", err)
	}
	md := BuildMetadata(req, next, m.opts.ExternalURLBase)
	pin, err := m.pinner.PinJSON(ctx, md)
	if err != nil {
		return nil, pinError(err)
	}

	res, err := m.chain.Mint(ctx, chain.MintArgs{
		WebsiteURL:       req.WebsiteURL,
		SpaceType:        req.SpaceType,
		SpaceID:          req.SpaceID,
		Category:         req.Category,
		TokenURI:         pin.URL,
		Height:           new(big.Int).SetUint64(req.Height),
		Width:            new(big.Int).SetUint64(req.Width),
		HourlyRentalRate: rate,
		Tags:             req.Tags,
	})
	if err != nil {
		return nil, txError("mintAdSpace", res, err)
	}

	out := &MintResult{
		TokenID:     res.TokenID.Uint64(),
		TokenURI:    pin.URL,
		Metadata:    &md,
		TxHash:      res.Hash.Hex(),
		BlockNumber: res.BlockNumber,
	}
	m.log.Info("ad space minted",
		zap.Uint64("token_id", out.TokenID), zap.String("tx", out.TxHash), zap.String("user_id", userID))
	m.cache.Invalidate(ctx)

	if m.events != nil {
		owner, _ := m.chain.Operator()
		ev := queue.AdSpaceMintedEvent{
			EventID:       queue.NewEventID(),
			TokenID:       out.TokenID,
			UserID:        userID,
			Owner:         owner.Hex(),
			WebsiteURL:    req.WebsiteURL,
			TokenURI:      pin.URL,
			HourlyRateUSD: m.calc.FormatRate(rate),
			TxHash:        out.TxHash,
			MintedAt:      queue.Timestamp(m.now()),
		}
		if err := m.events.PublishMinted(ctx, ev); err != nil {
			m.log.Warn("publish minted event failed", zap.Error(err))
		}
	}
	return out, nil
}

func txError(op string, res *chain.TxResult, err error) error {
	if errors.Is(err, chain.ErrReadOnly) {
		return ErrReadOnly
	}
	te := &TxError{Op: op, Err: err}
	if res != nil {
		te.TxHash = res.Hash.Hex()
	}
	return te
}

func pinError(err error) error {
	if errors.Is(err, ipfs.ErrNotConfigured) {
		return ErrPinningUnavailable
	}
	if errors.Is(err, ipfs.ErrTooLarge) {
		return invalid("file", "exceeds the upload limit")
	}
	return fmt.Errorf("pinning: %w", err)
}
