// Package chain talks to the AdSpaceNFT contract over Ethereum JSON-RPC.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/config"
	"github.com/iliyamo/adspace-marketplace/internal/model"
)

var (
	// ErrReadOnly is returned by write methods when no operator key is
	// configured.
	ErrReadOnly = errors.New("chain: no operator key configured")
	// ErrTxFailed is returned when a mined transaction has status 0.
	ErrTxFailed = errors.New("chain: transaction reverted")
	// ErrTxPending is returned when a transaction was sent but its receipt
	// was not observed within the configured wait.
	ErrTxPending = errors.New("chain: transaction not yet mined")
)

// Marketplace is the contract surface the service layer depends on.
type Marketplace interface {
	NextTokenID(ctx context.Context) (uint64, error)
	AdSpace(ctx context.Context, tokenID uint64) (model.AdSpace, error)
	TokenURI(ctx context.Context, tokenID uint64) (string, error)
	Rentals(ctx context.Context, tokenID uint64) ([]model.Rental, error)
	CurrentAd(ctx context.Context, tokenID uint64) (string, error)
	Status(ctx context.Context, tokenID uint64) (model.AdSpaceStatus, error)
	ETHForUSD(ctx context.Context, usdAmount *big.Int) (*big.Int, error)
	CanWrite() bool
	Operator() (common.Address, bool)
	Mint(ctx context.Context, a MintArgs) (*TxResult, error)
	Rent(ctx context.Context, tokenID uint64, start, end int64, websiteURL, adMetadataURI string, value *big.Int) (*TxResult, error)
}

var _ Marketplace = (*Client)(nil)

// TxResult describes a mined transaction.
type TxResult struct {
	Hash        common.Hash
	BlockNumber uint64
	GasUsed     uint64
	TokenID     *big.Int // set by Mint
}

// Client exposes the contract in domain types.  Reads are safe for
// concurrent use; writes are serialized so nonces are assigned in order.
type Client struct {
	eth       *ethclient.Client
	nft       *AdSpaceNFT
	backend   bind.DeployBackend
	opts      *bind.TransactOpts
	txTimeout time.Duration
	log       *zap.Logger

	mu sync.Mutex
}

// Dial connects to the node, binds the contract and, when an operator key
// is configured, prepares a keyed transactor.
func Dial(ctx context.Context, cfg config.ChainConfig, log *zap.Logger) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("chain: invalid contract address %q", cfg.ContractAddress)
	}
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}
	nft, err := NewAdSpaceNFT(common.HexToAddress(cfg.ContractAddress), eth)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c := &Client{eth: eth, nft: nft, backend: eth, txTimeout: cfg.TxTimeout, log: log}

	if cfg.OperatorKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.OperatorKey, "0x"))
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("chain: operator key: %w", err)
		}
		chainID := big.NewInt(cfg.ChainID)
		if cfg.ChainID == 0 {
			if chainID, err = eth.ChainID(ctx); err != nil {
				eth.Close()
				return nil, fmt.Errorf("chain: chain id: %w", err)
			}
		}
		if c.opts, err = bind.NewKeyedTransactorWithChainID(key, chainID); err != nil {
			eth.Close()
			return nil, err
		}
		log.Info("chain operator ready",
			zap.String("address", operatorAddress(key).Hex()),
			zap.String("chain_id", chainID.String()))
	}
	return c, nil
}

func operatorAddress(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// Close releases the RPC connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// ContractAddress returns the bound contract address.
func (c *Client) ContractAddress() common.Address { return c.nft.Address() }

// CanWrite reports whether an operator key is configured.
func (c *Client) CanWrite() bool { return c.opts != nil }

// Operator returns the address transactions are sent from.
func (c *Client) Operator() (common.Address, bool) {
	if c.opts == nil {
		return common.Address{}, false
	}
	return c.opts.From, true
}

// NextTokenID returns the token id counter.
func (c *Client) NextTokenID(ctx context.Context) (uint64, error) {
	n, err := c.nft.NextTokenID(ctx)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// AdSpace reads a token's ad space record.
func (c *Client) AdSpace(ctx context.Context, tokenID uint64) (model.AdSpace, error) {
	info, err := c.nft.GetAdSpace(ctx, new(big.Int).SetUint64(tokenID))
	if err != nil {
		return model.AdSpace{}, err
	}
	return toAdSpace(tokenID, info)
}

func toAdSpace(tokenID uint64, info *AdSpaceInfo) (model.AdSpace, error) {
	st, err := model.ParseStatus(info.Status)
	if err != nil {
		return model.AdSpace{}, err
	}
	tags := info.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.AdSpace{
		TokenID:          tokenID,
		Owner:            info.Owner.Hex(),
		WebsiteURL:       info.WebsiteURL,
		SpaceType:        info.SpaceType,
		SpaceID:          info.SpaceId,
		Category:         info.Category,
		Height:           bigUint(info.Height),
		Width:            bigUint(info.Width),
		Tags:             tags,
		HourlyRentalRate: orZero(info.HourlyRentalRate),
		Status:           st,
	}, nil
}

// TokenURI returns the token metadata URI.
func (c *Client) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	return c.nft.TokenURI(ctx, new(big.Int).SetUint64(tokenID))
}

// Rentals returns every rental recorded for a token.
func (c *Client) Rentals(ctx context.Context, tokenID uint64) ([]model.Rental, error) {
	infos, err := c.nft.GetAllRentals(ctx, new(big.Int).SetUint64(tokenID))
	if err != nil {
		return nil, err
	}
	out := make([]model.Rental, 0, len(infos))
	for _, r := range infos {
		out = append(out, model.Rental{
			TokenID:       tokenID,
			Renter:        r.Renter.Hex(),
			StartTime:     bigInt64(r.StartTime),
			EndTime:       bigInt64(r.EndTime),
			WebsiteURL:    r.WebsiteURL,
			AdMetadataURI: r.AdMetadataURI,
		})
	}
	return out, nil
}

// CurrentAd returns the running creative's metadata URI, or "" when the
// contract reports no active ad.
func (c *Client) CurrentAd(ctx context.Context, tokenID uint64) (string, error) {
	uri, err := c.nft.GetCurrentAd(ctx, new(big.Int).SetUint64(tokenID))
	if err != nil {
		return "", err
	}
	if uri == NoActiveAd {
		return "", nil
	}
	return uri, nil
}

// Status reads the on-chain status enum.
func (c *Client) Status(ctx context.Context, tokenID uint64) (model.AdSpaceStatus, error) {
	v, err := c.nft.GetAdSpaceStatus(ctx, new(big.Int).SetUint64(tokenID))
	if err != nil {
		return 0, err
	}
	return model.ParseStatus(v)
}

// ETHForUSD implements pricing.Oracle.
func (c *Client) ETHForUSD(ctx context.Context, usdAmount *big.Int) (*big.Int, error) {
	return c.nft.GetETHAmountForUSD(ctx, usdAmount)
}

// Mint sends mintAdSpace and waits for it to be mined.
func (c *Client) Mint(ctx context.Context, a MintArgs) (*TxResult, error) {
	res, receipt, err := c.transact(ctx, nil, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.nft.MintAdSpace(opts, a)
	})
	if err != nil {
		return res, err
	}
	if res.TokenID, err = c.nft.MintedTokenID(receipt); err != nil {
		return res, err
	}
	return res, nil
}

// Rent sends rentAdSpace with value attached and waits for it to be mined.
func (c *Client) Rent(ctx context.Context, tokenID uint64, start, end int64, websiteURL, adMetadataURI string, value *big.Int) (*TxResult, error) {
	res, _, err := c.transact(ctx, value, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.nft.RentAdSpace(opts, new(big.Int).SetUint64(tokenID),
			big.NewInt(start), big.NewInt(end), websiteURL, adMetadataURI)
	})
	return res, err
}

// transact sends one transaction with a private copy of the transactor and
// blocks until it is mined or txTimeout elapses.  The returned result
// carries the hash even when waiting fails.
func (c *Client) transact(ctx context.Context, value *big.Int, send func(*bind.TransactOpts) (*types.Transaction, error)) (*TxResult, *types.Receipt, error) {
	if c.opts == nil {
		return nil, nil, ErrReadOnly
	}
	opts := *c.opts
	opts.Context = ctx
	opts.Value = value

	c.mu.Lock()
	tx, err := send(&opts)
	c.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	res := &TxResult{Hash: tx.Hash()}
	c.log.Info("transaction sent", zap.String("tx", tx.Hash().Hex()))

	// a sent transaction is awaited even if the caller goes away
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.txTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		return res, nil, fmt.Errorf("%w: %s: %v", ErrTxPending, tx.Hash().Hex(), err)
	}
	res.BlockNumber = receipt.BlockNumber.Uint64()
	res.GasUsed = receipt.GasUsed
	if receipt.Status != types.ReceiptStatusSuccessful {
		return res, receipt, ErrTxFailed
	}
	return res, receipt, nil
}

func bigUint(v *big.Int) uint64 {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}

func bigInt64(v *big.Int) int64 {
	if v == nil || !v.IsInt64() {
		return 0
	}
	return v.Int64()
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
