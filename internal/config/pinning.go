package config

import (
	"os"
	"time"
)

// PinningConfig holds the pinning service credentials and endpoints.  Empty
// credentials are allowed at load time; upload calls then fail with
// ipfs.ErrNotConfigured.
type PinningConfig struct {
	APIURL     string
	GatewayURL string
	APIKey     string
	APISecret  string
	Timeout    time.Duration
	MaxUpload  int64
	// RequestsPerSecond throttles calls to the pinning API; 0 disables it.
	RequestsPerSecond float64
}

func LoadPinningConfig() PinningConfig {
	return PinningConfig{
		APIURL:     envStr("PINATA_API_URL", "https://api.pinata.cloud"),
		GatewayURL: envStr("IPFS_GATEWAY_URL", "https://gateway.pinata.cloud"),
		APIKey:     os.Getenv("PINATA_API_KEY"),
		APISecret:  os.Getenv("PINATA_API_SECRET"),
		Timeout:    envDur("PINNING_TIMEOUT", 30*time.Second),
		MaxUpload:  int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),

		RequestsPerSecond: float64(envInt("PINNING_RPS", 3)),
	}
}
