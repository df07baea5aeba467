package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/chain"
	"github.com/iliyamo/adspace-marketplace/internal/ipfs"
	"github.com/iliyamo/adspace-marketplace/internal/model"
	"github.com/iliyamo/adspace-marketplace/internal/pricing"
	"github.com/iliyamo/adspace-marketplace/internal/queue"
)

var (
	ownerA   = "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"
	renterB  = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
	operator = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	fixedNow = time.Unix(1_700_000_000, 0)
)

type rentCall struct {
	tokenID    uint64
	start, end int64
	value      *big.Int
}

type fakeChain struct {
	mu    sync.Mutex
	loads int

	next       uint64
	nextErr    error
	spaces     map[uint64]model.AdSpace
	uris       map[uint64]string
	rentals    map[uint64][]model.Rental
	rentalsErr map[uint64]error
	current    map[uint64]string
	statuses   map[uint64]model.AdSpaceStatus
	statusErr  error
	usdPerEth  int64
	ethErr     error
	writable   bool

	minted  []chain.MintArgs
	mintErr error
	rents   []rentCall
	rentErr error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		spaces:     map[uint64]model.AdSpace{},
		uris:       map[uint64]string{},
		rentals:    map[uint64][]model.Rental{},
		rentalsErr: map[uint64]error{},
		current:    map[uint64]string{},
		statuses:   map[uint64]model.AdSpaceStatus{},
		usdPerEth:  2000,
	}
}

func e18(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18)) }

func (f *fakeChain) addSpace(id uint64, owner string, rateUSD int64, status model.AdSpaceStatus) {
	f.spaces[id] = model.AdSpace{
		TokenID: id, Owner: owner, WebsiteURL: "https://site.example", SpaceType: "banner",
		SpaceID: fmt.Sprintf("slot-%d", id), Height: 90, Width: 728, Tags: []string{},
		HourlyRentalRate: e18(rateUSD), Status: status,
	}
	f.uris[id] = fmt.Sprintf("ipfs://meta-%d", id)
	if id >= f.next {
		f.next = id + 1
	}
}

func (f *fakeChain) NextTokenID(context.Context) (uint64, error) {
	f.mu.Lock()
	f.loads++
	f.mu.Unlock()
	return f.next, f.nextErr
}

func (f *fakeChain) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func (f *fakeChain) AdSpace(_ context.Context, id uint64) (model.AdSpace, error) {
	s, ok := f.spaces[id]
	if !ok {
		return model.AdSpace{}, errors.New("execution reverted: Ad space does not exist")
	}
	return s, nil
}

func (f *fakeChain) TokenURI(_ context.Context, id uint64) (string, error) {
	return f.uris[id], nil
}

func (f *fakeChain) Rentals(_ context.Context, id uint64) ([]model.Rental, error) {
	if err := f.rentalsErr[id]; err != nil {
		return nil, err
	}
	return f.rentals[id], nil
}

func (f *fakeChain) CurrentAd(_ context.Context, id uint64) (string, error) {
	return f.current[id], nil
}

func (f *fakeChain) Status(_ context.Context, id uint64) (model.AdSpaceStatus, error) {
	if f.statusErr != nil {
		return 0, f.statusErr
	}
	if st, ok := f.statuses[id]; ok {
		return st, nil
	}
	return f.spaces[id].Status, nil
}

func (f *fakeChain) ETHForUSD(_ context.Context, usd *big.Int) (*big.Int, error) {
	if f.ethErr != nil {
		return nil, f.ethErr
	}
	return new(big.Int).Div(usd, big.NewInt(f.usdPerEth)), nil
}

func (f *fakeChain) CanWrite() bool { return f.writable }

func (f *fakeChain) Operator() (common.Address, bool) { return operator, f.writable }

func (f *fakeChain) Mint(_ context.Context, a chain.MintArgs) (*chain.TxResult, error) {
	if !f.writable {
		return nil, chain.ErrReadOnly
	}
	f.minted = append(f.minted, a)
	if f.mintErr != nil {
		return &chain.TxResult{Hash: common.HexToHash("0xdead")}, f.mintErr
	}
	id := f.next
	f.next++
	return &chain.TxResult{Hash: common.HexToHash("0x0a"), BlockNumber: 77, TokenID: new(big.Int).SetUint64(id)}, nil
}

func (f *fakeChain) Rent(_ context.Context, id uint64, start, end int64, _, _ string, value *big.Int) (*chain.TxResult, error) {
	if !f.writable {
		return nil, chain.ErrReadOnly
	}
	f.rents = append(f.rents, rentCall{tokenID: id, start: start, end: end, value: value})
	if f.rentErr != nil {
		return &chain.TxResult{Hash: common.HexToHash("0xbad")}, f.rentErr
	}
	return &chain.TxResult{Hash: common.HexToHash("0x0b"), BlockNumber: 88}, nil
}

type fakeFetcher map[string]*model.AdMetadata

func (f fakeFetcher) Fetch(_ context.Context, uri string) (*model.AdMetadata, error) {
	md, ok := f[uri]
	if !ok {
		return nil, fmt.Errorf("fetch %s: status 404", uri)
	}
	return md, nil
}

type fakePinner struct {
	configured bool
	err        error
	files      []string
	docs       []any
}

func (p *fakePinner) Configured() bool { return p.configured }

func (p *fakePinner) PinFile(_ context.Context, name string, r io.Reader) (*ipfs.Pin, error) {
	if p.err != nil {
		return nil, p.err
	}
	_, _ = io.Copy(io.Discard, r)
	p.files = append(p.files, name)
	return p.pin(), nil
}

func (p *fakePinner) PinJSON(_ context.Context, v any) (*ipfs.Pin, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.docs = append(p.docs, v)
	return p.pin(), nil
}

func (p *fakePinner) pin() *ipfs.Pin {
	hash := fmt.Sprintf("Qm%d", len(p.files)+len(p.docs))
	return &ipfs.Pin{Hash: hash, URL: "https://gw.example/ipfs/" + hash}
}

type fakeLedger struct {
	created   []model.RentalRecord
	submitted map[uint64]string
	confirmed map[uint64]string
	failed    map[uint64]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{submitted: map[uint64]string{}, confirmed: map[uint64]string{}, failed: map[uint64]string{}}
}

func (l *fakeLedger) Create(_ context.Context, rec *model.RentalRecord) (uint64, error) {
	rec.ID = uint64(len(l.created) + 1)
	rec.Status = model.RentalSubmitted
	l.created = append(l.created, *rec)
	return rec.ID, nil
}

func (l *fakeLedger) MarkSubmitted(_ context.Context, id uint64, txHash string) error {
	l.submitted[id] = txHash
	return nil
}

func (l *fakeLedger) MarkConfirmed(_ context.Context, id uint64, txHash string) error {
	l.confirmed[id] = txHash
	return nil
}

func (l *fakeLedger) MarkFailed(_ context.Context, id uint64, _, reason string) error {
	l.failed[id] = reason
	return nil
}

func (l *fakeLedger) ListByUser(_ context.Context, userID string, _ int) ([]model.RentalRecord, error) {
	var out []model.RentalRecord
	for _, r := range l.created {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeEvents struct {
	rented []queue.AdSpaceRentedEvent
	minted []queue.AdSpaceMintedEvent
}

func (e *fakeEvents) PublishRented(_ context.Context, ev queue.AdSpaceRentedEvent) error {
	e.rented = append(e.rented, ev)
	return nil
}

func (e *fakeEvents) PublishMinted(_ context.Context, ev queue.AdSpaceMintedEvent) error {
	e.minted = append(e.minted, ev)
	return nil
}

type harness struct {
	m       *Marketplace
	chain   *fakeChain
	meta    fakeFetcher
	pinner  *fakePinner
	ledger  *fakeLedger
	events  *fakeEvents
}

func newHarness(t *testing.T, cache *ListingCache) *harness {
	t.Helper()
	h := &harness{
		chain:  newFakeChain(),
		meta:   fakeFetcher{},
		pinner: &fakePinner{configured: true},
		ledger: newFakeLedger(),
		events: &fakeEvents{},
	}
	calc, err := pricing.NewCalculator(h.chain, pricing.DefaultParams())
	require.NoError(t, err)
	h.m = New(Deps{
		Chain:      h.chain,
		Calculator: calc,
		Metadata:   h.meta,
		Pinner:     h.pinner,
		Rentals:    h.ledger,
		Events:     h.events,
		Cache:      cache,
		Log:        zap.NewNop(),
		Options:    Options{Concurrency: 3, CallTimeout: time.Second},
	})
	h.m.now = func() time.Time { return fixedNow }
	return h
}
