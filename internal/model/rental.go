package model

import (
	"fmt"
	"time"
)

// Rental is a time-bounded lease of an ad space recorded on-chain.  It is
// immutable once created and expires implicitly when now passes EndTime.
type Rental struct {
	TokenID       uint64 `json:"token_id"`
	Renter        string `json:"renter"`
	StartTime     int64  `json:"start_time"` // unix seconds
	EndTime       int64  `json:"end_time"`   // unix seconds
	WebsiteURL    string `json:"website_url"`
	AdMetadataURI string `json:"ad_metadata_uri"`
}

// Active reports whether now falls in [StartTime, EndTime).
func (r Rental) Active(now time.Time) bool {
	ts := now.Unix()
	return ts >= r.StartTime && ts < r.EndTime
}

// Expired reports whether the rental window has fully elapsed.
func (r Rental) Expired(now time.Time) bool {
	return now.Unix() >= r.EndTime
}

// Remaining formats the time left in the rental as "<h>h <m>m remaining".
func (r Rental) Remaining(now time.Time) string {
	diff := r.EndTime - now.Unix()
	if diff < 0 {
		diff = 0
	}
	return formatRemaining(diff)
}

func formatRemaining(secs int64) string {
	return fmt.Sprintf("%dh %dm remaining", secs/3600, (secs%3600)/60)
}

// EffectiveStatus derives the status a client should display.  A paused
// space stays paused; otherwise the space is Rented while any rental is
// active and Available when none is.  The active rental, if any, is
// returned alongside.
func EffectiveStatus(onChain AdSpaceStatus, rentals []Rental, now time.Time) (AdSpaceStatus, *Rental) {
	if onChain == StatusPaused {
		return StatusPaused, nil
	}
	for i := range rentals {
		if rentals[i].Active(now) {
			r := rentals[i]
			return StatusRented, &r
		}
	}
	return StatusAvailable, nil
}
