package config

import (
	"os"
	"time"
)

// ChainConfig describes how to reach the AdSpaceNFT contract.  The operator
// key is optional: without it the service runs read-only and the mint/rent
// endpoints answer 503.
type ChainConfig struct {
	RPCURL             string
	ContractAddress    string
	ChainID            int64 // 0 means "ask the node"
	OperatorKey        string
	TxTimeout          time.Duration
	CallTimeout        time.Duration
	ListingConcurrency int
	FallbackTokenCount int
	MaxTokenCount      int // upper bound on the listing enumeration
}

// LoadChainConfig reads the chain settings.  CONTRACT_ADDRESS is required;
// every deployment pins exactly one contract.
func LoadChainConfig() ChainConfig {
	c := ChainConfig{
		RPCURL:             envStr("ETH_RPC_URL", "http://localhost:8545"),
		ContractAddress:    must("CONTRACT_ADDRESS"),
		ChainID:            int64(envInt("ETH_CHAIN_ID", 0)),
		OperatorKey:        os.Getenv("OPERATOR_PRIVATE_KEY"),
		TxTimeout:          envDur("TX_TIMEOUT", 2*time.Minute),
		CallTimeout:        envDur("CALL_TIMEOUT", 10*time.Second),
		ListingConcurrency: envInt("LISTING_CONCURRENCY", 4),
		FallbackTokenCount: envInt("FALLBACK_TOKEN_COUNT", 10),
		MaxTokenCount:      envInt("MAX_TOKEN_COUNT", 10000),
	}
	if c.ListingConcurrency < 1 {
		c.ListingConcurrency = 1
	}
	if c.MaxTokenCount < 1 {
		c.MaxTokenCount = 10000
	}
	return c
}
