package model

import (
	"fmt"
	"math/big"
)

// AdSpaceStatus mirrors the on-chain status enumeration of an ad space.
type AdSpaceStatus uint8

const (
	StatusAvailable AdSpaceStatus = iota
	StatusRented
	StatusPaused
)

// String returns the display name used by the API.
func (s AdSpaceStatus) String() string {
	switch s {
	case StatusAvailable:
		return "Available"
	case StatusRented:
		return "Rented"
	case StatusPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the status by name so JSON responses carry
// "Available" rather than 0.
func (s AdSpaceStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *AdSpaceStatus) UnmarshalText(b []byte) error {
	for _, v := range []AdSpaceStatus{StatusAvailable, StatusRented, StatusPaused} {
		if string(b) == v.String() {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown ad space status %q", b)
}

// ParseStatus converts the raw contract value into an AdSpaceStatus.
func ParseStatus(v uint8) (AdSpaceStatus, error) {
	if v > uint8(StatusPaused) {
		return 0, fmt.Errorf("unknown ad space status %d", v)
	}
	return AdSpaceStatus(v), nil
}

// AdSpace is an advertising slot minted as an NFT.  The contract owns
// this record; the service only reads it.
//
// Fields:
//
//	TokenID          - NFT token id.
//	Owner            - publisher address (0x hex).
//	WebsiteURL       - site on which the slot is displayed.
//	SpaceType        - slot kind, e.g. "banner" or "sidebar".
//	SpaceID          - publisher-side identifier of the slot element.
//	Category         - site category.
//	Height, Width    - slot dimensions in pixels.
//	Tags             - free-form search tags.
//	HourlyRentalRate - USD per hour in the contract's representation.
//	Status           - status stored on-chain.
type AdSpace struct {
	TokenID          uint64        `json:"token_id"`
	Owner            string        `json:"owner"`
	WebsiteURL       string        `json:"website_url"`
	SpaceType        string        `json:"space_type"`
	SpaceID          string        `json:"space_id"`
	Category         string        `json:"category"`
	Height           uint64        `json:"height"`
	Width            uint64        `json:"width"`
	Tags             []string      `json:"tags"`
	HourlyRentalRate *big.Int      `json:"hourly_rental_rate"`
	Status           AdSpaceStatus `json:"status"`
}

// Listing is an ad space joined with its token metadata and the status
// derived from its rentals at the time of the read.
type Listing struct {
	AdSpace
	HourlyRateUSD   string        `json:"hourly_rate_usd"`
	EffectiveStatus AdSpaceStatus `json:"effective_status"`
	Metadata        *AdMetadata   `json:"metadata,omitempty"`
	CurrentRental   *Rental       `json:"current_rental,omitempty"`
}
