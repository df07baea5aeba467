package service

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/adspace-marketplace/internal/model"
)

const fallbackWarning = "Falling back to default token count due to nextTokenId error."

// ListingResult is every readable ad space ordered by token id.
type ListingResult struct {
	Items     []model.Listing `json:"items"`
	Skipped   []uint64        `json:"skipped,omitempty"`   // tokens that failed to load
	Fallback  bool            `json:"fallback"`            // nextTokenId failed
	Truncated bool            `json:"truncated,omitempty"` // nextTokenId above the listing cap
	Warning   string          `json:"warning,omitempty"`
	LoadedAt  time.Time       `json:"loaded_at"`
}

// Details is one ad space with its full rental history.
type Details struct {
	model.Listing
	Rentals []model.Rental `json:"rentals"`
}

// Listing returns the marketplace listing, served from the cache when
// possible.
func (m *Marketplace) Listing(ctx context.Context) (*ListingResult, error) {
	return m.cache.Load(ctx, m.loadListing)
}

// loadListing enumerates token ids [0, nextTokenId) with bounded
// parallelism.  A token that fails to load is logged and skipped.
func (m *Marketplace) loadListing(ctx context.Context) (*ListingResult, error) {
	now := m.now()
	res := &ListingResult{Items: []model.Listing{}, LoadedAt: now.UTC()}

	count, err := m.nextTokenID(ctx)
	if err != nil {
		m.log.Warn("nextTokenId failed, using fallback count",
			zap.Uint64("fallback", m.opts.FallbackTokenCount), zap.Error(err))
		count = m.opts.FallbackTokenCount
		res.Fallback = true
		res.Warning = fallbackWarning
	}
	if count > m.opts.MaxTokenCount {
		m.log.Warn("nextTokenId exceeds listing cap, truncating",
			zap.Uint64("next_token_id", count), zap.Uint64("cap", m.opts.MaxTokenCount))
		count = m.opts.MaxTokenCount
		res.Truncated = true
	}

	slots := make([]*model.Listing, count)
	var g errgroup.Group
	g.SetLimit(m.opts.Concurrency)
	for id := uint64(0); id < count; id++ {
		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l, _, err := m.loadOne(ctx, id, now)
			if err != nil {
				m.log.Warn("skipping ad space", zap.Uint64("token_id", id), zap.Error(err))
				return nil
			}
			slots[id] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for id, l := range slots {
		if l == nil {
			res.Skipped = append(res.Skipped, uint64(id))
			continue
		}
		res.Items = append(res.Items, *l)
	}
	return res, nil
}

func (m *Marketplace) nextTokenID(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()
	return m.chain.NextTokenID(ctx)
}

// loadOne reads a token's record, URI, metadata and rentals.  Metadata and
// rental failures degrade the entry instead of dropping it; the returned
// rentals are nil when they could not be read.
func (m *Marketplace) loadOne(ctx context.Context, id uint64, now time.Time) (*model.Listing, []model.Rental, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()

	space, err := m.chain.AdSpace(ctx, id)
	if err != nil {
		return nil, nil, upstream("getAdSpace", err)
	}
	if isZeroAddress(space.Owner) {
		return nil, nil, ErrNotFound
	}
	uri, err := m.chain.TokenURI(ctx, id)
	if err != nil {
		return nil, nil, upstream("tokenURI", err)
	}

	l := &model.Listing{
		AdSpace:         space,
		HourlyRateUSD:   m.calc.FormatRate(space.HourlyRentalRate),
		EffectiveStatus: space.Status,
	}
	if uri != "" {
		md, err := m.meta.Fetch(ctx, uri)
		if err != nil {
			m.log.Warn("metadata fetch failed", zap.Uint64("token_id", id), zap.Error(err))
		} else {
			l.Metadata = md
		}
	}

	rentals, err := m.chain.Rentals(ctx, id)
	if err != nil {
		m.log.Warn("getAllRentals failed, using on-chain status", zap.Uint64("token_id", id), zap.Error(err))
		return l, nil, nil
	}
	l.EffectiveStatus, _ = model.EffectiveStatus(space.Status, rentals, now)
	_, l.CurrentRental = model.EffectiveStatus(model.StatusAvailable, rentals, now)
	if rentals == nil {
		rentals = []model.Rental{}
	}
	return l, rentals, nil
}

// Details reads a single ad space directly from the chain.  The status
// comes from getAdSpaceStatus when that call succeeds.
func (m *Marketplace) Details(ctx context.Context, id uint64) (*Details, error) {
	if n, err := m.nextTokenID(ctx); err == nil && id >= n {
		return nil, ErrNotFound
	}
	now := m.now()
	l, rentals, err := m.loadOne(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if rentals == nil {
		if rentals, err = m.Rentals(ctx, id); err != nil {
			return nil, err
		}
	}
	if st, err := m.liveStatus(ctx, id); err != nil {
		m.log.Warn("getAdSpaceStatus failed, using record status", zap.Uint64("token_id", id), zap.Error(err))
	} else {
		l.Status = st
	}
	l.EffectiveStatus, _ = model.EffectiveStatus(l.Status, rentals, now)
	_, l.CurrentRental = model.EffectiveStatus(model.StatusAvailable, rentals, now)
	return &Details{Listing: *l, Rentals: rentals}, nil
}

func (m *Marketplace) liveStatus(ctx context.Context, id uint64) (model.AdSpaceStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()
	return m.chain.Status(ctx, id)
}

// Rentals returns a token's full rental history.
func (m *Marketplace) Rentals(ctx context.Context, id uint64) ([]model.Rental, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()
	rentals, err := m.chain.Rentals(ctx, id)
	if err != nil {
		return nil, upstream("getAllRentals", err)
	}
	if rentals == nil {
		rentals = []model.Rental{}
	}
	return rentals, nil
}

// CurrentAd returns the creative running on a space, or nil when the
// contract reports none.
func (m *Marketplace) CurrentAd(ctx context.Context, id uint64) (*model.CurrentAd, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()
	uri, err := m.chain.CurrentAd(ctx, id)
	if err != nil {
		return nil, upstream("getCurrentAd", err)
	}
	if uri == "" {
		return nil, nil
	}
	md, err := m.meta.Fetch(ctx, uri)
	if err != nil {
		return nil, upstream("metadata", err)
	}
	return &model.CurrentAd{URI: uri, Image: md.Image, WebsiteURL: md.WebsiteURL, Name: md.Name}, nil
}

func isZeroAddress(s string) bool {
	return s == "" || common.HexToAddress(s) == (common.Address{})
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
