package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNoMintEvent is returned when a mint receipt carries no Transfer from
// the zero address.
var ErrNoMintEvent = errors.New("chain: mint receipt has no transfer event")

// AdSpaceNFT is a thin binding around the deployed AdSpaceNFT contract.
type AdSpaceNFT struct {
	abi      abi.ABI
	address  common.Address
	contract *bind.BoundContract
}

// NewAdSpaceNFT binds to an already-deployed AdSpaceNFT contract.
func NewAdSpaceNFT(addr common.Address, backend bind.ContractBackend) (*AdSpaceNFT, error) {
	parsed, err := abi.JSON(strings.NewReader(AdSpaceNFTABI))
	if err != nil {
		return nil, err
	}
	return &AdSpaceNFT{
		abi:      parsed,
		address:  addr,
		contract: bind.NewBoundContract(addr, parsed, backend, backend, backend),
	}, nil
}

// Address returns the bound contract address.
func (c *AdSpaceNFT) Address() common.Address { return c.address }

// AdSpaceInfo is the getAdSpace tuple.  Field names must match the ABI
// component names after camel-casing.
type AdSpaceInfo struct {
	Owner            common.Address
	WebsiteURL       string
	SpaceType        string
	SpaceId          string
	Category         string
	Height           *big.Int
	Width            *big.Int
	HourlyRentalRate *big.Int
	Tags             []string
	Status           uint8
}

// RentalInfo is one element of the getAllRentals tuple array.
type RentalInfo struct {
	Renter        common.Address
	StartTime     *big.Int
	EndTime       *big.Int
	WebsiteURL    string
	AdMetadataURI string
}

// MintArgs are the mintAdSpace parameters.
type MintArgs struct {
	WebsiteURL       string
	SpaceType        string
	SpaceID          string
	Category         string
	TokenURI         string
	Height           *big.Int
	Width            *big.Int
	HourlyRentalRate *big.Int
	Tags             []string
}

// ──────────────────────────────────────────────
//  Read methods
// ──────────────────────────────────────────────

func (c *AdSpaceNFT) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	return out, err
}

// GetAdSpace reads the full ad space record.
func (c *AdSpaceNFT) GetAdSpace(ctx context.Context, tokenID *big.Int) (*AdSpaceInfo, error) {
	out, err := c.call(ctx, "getAdSpace", tokenID)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(AdSpaceInfo)).(*AdSpaceInfo), nil
}

// GetAllRentals reads every rental recorded for a token.
func (c *AdSpaceNFT) GetAllRentals(ctx context.Context, tokenID *big.Int) ([]RentalInfo, error) {
	out, err := c.call(ctx, "getAllRentals", tokenID)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]RentalInfo)).(*[]RentalInfo), nil
}

// TokenURI returns the metadata URI of a token.
func (c *AdSpaceNFT) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	out, err := c.call(ctx, "tokenURI", tokenID)
	if err != nil {
		return "", err
	}
	return out[0].(string), nil
}

// NextTokenID returns the id the next mint will receive.
func (c *AdSpaceNFT) NextTokenID(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, "nextTokenId")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// GetCurrentAd returns the metadata URI of the running rental, or
// NoActiveAd.
func (c *AdSpaceNFT) GetCurrentAd(ctx context.Context, tokenID *big.Int) (string, error) {
	out, err := c.call(ctx, "getCurrentAd", tokenID)
	if err != nil {
		return "", err
	}
	return out[0].(string), nil
}

// GetAdSpaceStatus returns the raw status enum.
func (c *AdSpaceNFT) GetAdSpaceStatus(ctx context.Context, tokenID *big.Int) (uint8, error) {
	out, err := c.call(ctx, "getAdSpaceStatus", tokenID)
	if err != nil {
		return 0, err
	}
	return out[0].(uint8), nil
}

// GetETHAmountForUSD converts an 18-decimal USD amount to wei using the
// contract's price feed.
func (c *AdSpaceNFT) GetETHAmountForUSD(ctx context.Context, usdAmount *big.Int) (*big.Int, error) {
	out, err := c.call(ctx, "getETHAmountForUSD", usdAmount)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// ──────────────────────────────────────────────
//  Write methods
// ──────────────────────────────────────────────

// MintAdSpace mints a new ad space owned by the transactor.
func (c *AdSpaceNFT) MintAdSpace(opts *bind.TransactOpts, a MintArgs) (*types.Transaction, error) {
	return c.contract.Transact(opts, "mintAdSpace",
		a.WebsiteURL, a.SpaceType, a.SpaceID, a.Category, a.TokenURI,
		a.Height, a.Width, a.HourlyRentalRate, a.Tags)
}

// RentAdSpace rents a token for [start, end).  opts.Value must carry the
// ETH payment.
func (c *AdSpaceNFT) RentAdSpace(opts *bind.TransactOpts, tokenID, start, end *big.Int, websiteURL, adMetadataURI string) (*types.Transaction, error) {
	return c.contract.Transact(opts, "rentAdSpace", tokenID, start, end, websiteURL, adMetadataURI)
}

// MintedTokenID finds the token id minted by a transaction from its
// Transfer(0x0, to, tokenId) log.
func (c *AdSpaceNFT) MintedTokenID(receipt *types.Receipt) (*big.Int, error) {
	topic := c.abi.Events["Transfer"].ID
	for _, lg := range receipt.Logs {
		if lg.Address != c.address || len(lg.Topics) != 4 || lg.Topics[0] != topic {
			continue
		}
		if common.BytesToAddress(lg.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[3].Bytes()), nil
	}
	return nil, ErrNoMintEvent
}
