package model

import "time"

// Rental ledger statuses.
const (
	RentalSubmitted = "SUBMITTED"
	RentalConfirmed = "CONFIRMED"
	RentalFailed    = "FAILED"
)

// RentalRecord is the service's own ledger row for a rent transaction it
// submitted.  The contract stays authoritative; the ledger lets a user list
// what they paid for and which transaction carried it.
//
// Fields:
//
//	ID            - primary key.
//	UserID        - user who requested the rental.
//	TokenID       - rented ad space.
//	StartTime     - rental start.
//	EndTime       - rental end.
//	WebsiteURL    - landing page of the creative.
//	AdMetadataURI - creative metadata URI.
//	ValueWei      - ETH attached to the transaction, decimal wei.
//	TxHash        - transaction hash (empty until submitted).
//	Status        - SUBMITTED, CONFIRMED or FAILED.
//	FailureReason - revert reason or error text for FAILED rows.
type RentalRecord struct {
	ID            uint64    `json:"id"`
	UserID        string    `json:"user_id"`
	TokenID       uint64    `json:"token_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	WebsiteURL    string    `json:"website_url"`
	AdMetadataURI string    `json:"ad_metadata_uri"`
	ValueWei      string    `json:"value_wei"`
	TxHash        string    `json:"tx_hash"`
	Status        string    `json:"status"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
