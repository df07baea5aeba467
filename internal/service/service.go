// Package service orchestrates the contract, the pinning service and the
// local stores behind the HTTP handlers and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/chain"
	"github.com/iliyamo/adspace-marketplace/internal/ipfs"
	"github.com/iliyamo/adspace-marketplace/internal/model"
	"github.com/iliyamo/adspace-marketplace/internal/pricing"
	"github.com/iliyamo/adspace-marketplace/internal/queue"
)

// DefaultMaxTokenCount bounds the listing enumeration when Options leaves
// it unset.
const DefaultMaxTokenCount = 10000

var (
	ErrNotFound           = errors.New("ad space not found")
	ErrReadOnly           = errors.New("marketplace is read-only: no operator key configured")
	ErrPinningUnavailable = errors.New("pinning service is not configured")
)

// ValidationError reports bad caller input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }

// TxError wraps a failed contract write.  TxHash is empty when the
// transaction never left the node.
type TxError struct {
	Op     string
	TxHash string
	Err    error
}

func (e *TxError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("%s (tx %s): %v", e.Op, e.TxHash, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }

// Pending reports that the transaction was sent but no receipt was seen
// before the wait gave up.
func (e *TxError) Pending() bool { return errors.Is(e.Err, chain.ErrTxPending) }

// Reason is the message shown to clients: the revert reason when the node
// reported one, otherwise "unknown error".
func (e *TxError) Reason() string {
	if e.Pending() {
		return "transaction submitted, receipt not yet available"
	}
	return chain.UserMessage(e.Err)
}

// UpstreamError wraps a failed contract read or price feed call.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

// Reason is the revert reason when there is one, otherwise "unknown error".
func (e *UpstreamError) Reason() string { return chain.UserMessage(e.Err) }

func upstream(op string, err error) error { return &UpstreamError{Op: op, Err: err} }

// RentalLedger stores the service's record of rent transactions.
type RentalLedger interface {
	Create(ctx context.Context, rec *model.RentalRecord) (uint64, error)
	MarkSubmitted(ctx context.Context, id uint64, txHash string) error
	MarkConfirmed(ctx context.Context, id uint64, txHash string) error
	MarkFailed(ctx context.Context, id uint64, txHash, reason string) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.RentalRecord, error)
}

// Pinner uploads content to IPFS.
type Pinner interface {
	Configured() bool
	PinFile(ctx context.Context, name string, r io.Reader) (*ipfs.Pin, error)
	PinJSON(ctx context.Context, v any) (*ipfs.Pin, error)
}

// MetadataFetcher reads metadata documents by URI.
type MetadataFetcher interface {
	Fetch(ctx context.Context, uri string) (*model.AdMetadata, error)
}

// EventPublisher emits domain events.  Publishing is best effort.
type EventPublisher interface {
	PublishRented(ctx context.Context, ev queue.AdSpaceRentedEvent) error
	PublishMinted(ctx context.Context, ev queue.AdSpaceMintedEvent) error
}

// Options tune the listing fan-out and minted metadata.
type Options struct {
	Concurrency        int
	FallbackTokenCount uint64
	MaxTokenCount      uint64
	CallTimeout        time.Duration
	ExternalURLBase    string
}

// Deps are the collaborators of a Marketplace.  Rentals, Events and Cache
// may be nil.
type Deps struct {
	Chain      chain.Marketplace
	Calculator *pricing.Calculator
	Metadata   MetadataFetcher
	Pinner     Pinner
	Rentals    RentalLedger
	Events     EventPublisher
	Cache      *ListingCache
	Log        *zap.Logger
	Options    Options
}

// Marketplace implements the ad space use cases.
type Marketplace struct {
	chain   chain.Marketplace
	calc    *pricing.Calculator
	meta    MetadataFetcher
	pinner  Pinner
	rentals RentalLedger
	events  EventPublisher
	cache   *ListingCache
	log     *zap.Logger
	opts    Options
	now     func() time.Time
}

func New(d Deps) *Marketplace {
	opts := d.Options
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.FallbackTokenCount == 0 {
		opts.FallbackTokenCount = 10
	}
	if opts.MaxTokenCount == 0 {
		opts.MaxTokenCount = DefaultMaxTokenCount
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if opts.ExternalURLBase == "" {
		opts.ExternalURLBase = DefaultExternalURLBase
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	cache := d.Cache
	if cache == nil {
		cache = NewListingCache(nil, "", 0, log)
	}
	return &Marketplace{
		chain:   d.Chain,
		calc:    d.Calculator,
		meta:    d.Metadata,
		pinner:  d.Pinner,
		rentals: d.Rentals,
		events:  d.Events,
		cache:   cache,
		log:     log,
		opts:    opts,
		now:     time.Now,
	}
}

// Calculator exposes the pricing policy in use.
func (m *Marketplace) Calculator() *pricing.Calculator { return m.calc }

// CanWrite reports whether mint and rent are available.
func (m *Marketplace) CanWrite() bool { return m.chain.CanWrite() }
