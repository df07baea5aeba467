package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/iliyamo/adspace-marketplace/internal/model"
)

// Campaign is an ad space currently rented by the dashboard's address.
type Campaign struct {
	model.Listing
	Remaining string `json:"remaining"`
}

// Dashboard groups the listing around one wallet address.
type Dashboard struct {
	Address  string          `json:"address"`
	Created  []model.Listing `json:"created"`
	Ongoing  []Campaign      `json:"ongoing"`
	Fallback bool            `json:"fallback"`
	Warning  string          `json:"warning,omitempty"`
}

// Dashboard returns the spaces owned by address and the spaces it is
// renting right now.
func (m *Marketplace) Dashboard(ctx context.Context, address string) (*Dashboard, error) {
	if !common.IsHexAddress(address) {
		return nil, invalid("address", "must be a 0x-prefixed hex address")
	}
	listing, err := m.Listing(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	d := &Dashboard{
		Address:  common.HexToAddress(address).Hex(),
		Created:  []model.Listing{},
		Ongoing:  []Campaign{},
		Fallback: listing.Fallback,
		Warning:  listing.Warning,
	}
	for _, l := range listing.Items {
		if sameAddress(l.Owner, address) {
			d.Created = append(d.Created, l)
		}
		r := l.CurrentRental
		if r != nil && r.Active(now) && sameAddress(r.Renter, address) {
			d.Ongoing = append(d.Ongoing, Campaign{Listing: l, Remaining: r.Remaining(now)})
		}
	}
	return d, nil
}
