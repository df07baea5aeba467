// Package queue defines message payloads exchanged over the message broker
// together with their publisher and consumer.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Queue names.  Both are durable.
const (
	RentedQueue = "adspace.rented"
	MintedQueue = "adspace.minted"
)

// AdSpaceRentedEvent is published after a rent transaction is mined.  It
// carries enough for consumers to log or notify without reading the chain.
type AdSpaceRentedEvent struct {
	EventID       string `json:"event_id"`
	TokenID       uint64 `json:"token_id"`
	UserID        string `json:"user_id"`
	Renter        string `json:"renter"`
	StartTime     int64  `json:"start_time"`
	EndTime       int64  `json:"end_time"`
	WebsiteURL    string `json:"website_url"`
	AdMetadataURI string `json:"ad_metadata_uri"`
	ValueWei      string `json:"value_wei"`
	TxHash        string `json:"tx_hash"`
	RentedAt      string `json:"rented_at"`
}

// AdSpaceMintedEvent is published after a mint transaction is mined.
type AdSpaceMintedEvent struct {
	EventID       string `json:"event_id"`
	TokenID       uint64 `json:"token_id"`
	UserID        string `json:"user_id"`
	Owner         string `json:"owner"`
	WebsiteURL    string `json:"website_url"`
	TokenURI      string `json:"token_uri"`
	HourlyRateUSD string `json:"hourly_rate_usd"`
	TxHash        string `json:"tx_hash"`
	MintedAt      string `json:"minted_at"`
}

// NewEventID returns a fresh event id.
func NewEventID() string { return uuid.NewString() }

// Timestamp formats t the way events carry times.
func Timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }
