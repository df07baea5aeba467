// Package ipfs pins files and JSON documents through the Pinata API and
// fetches metadata back through an HTTP gateway.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iliyamo/adspace-marketplace/internal/config"
)

var (
	// ErrNotConfigured is returned when the API key or secret is missing.
	ErrNotConfigured = errors.New("ipfs: pinning credentials not configured")
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("ipfs: upload too large")
)

// PinError is a non-2xx answer from the pinning API.
type PinError struct {
	Status int
	Body   string
}

func (e *PinError) Error() string {
	return fmt.Sprintf("ipfs: pinning api returned %d: %s", e.Status, e.Body)
}

// Pin is the result of a successful pin.
type Pin struct {
	Hash      string `json:"ipfs_hash"`
	PinSize   int64  `json:"pin_size"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Pinner uploads content to IPFS.
type Pinner struct {
	cfg     config.PinningConfig
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewPinner builds a Pinner.  Requests are throttled to the configured rate
// so bursts of uploads stay under the API's per-key limit.
func NewPinner(cfg config.PinningConfig, log *zap.Logger) *Pinner {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Pinner{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1+int(cfg.RequestsPerSecond)),
		log:     log,
	}
}

// Configured reports whether API credentials are present.
func (p *Pinner) Configured() bool {
	return p.cfg.APIKey != "" && p.cfg.APISecret != ""
}

// GatewayURL returns the public URL for a content hash.
func (p *Pinner) GatewayURL(hash string) string {
	return strings.TrimRight(p.cfg.GatewayURL, "/") + "/ipfs/" + hash
}

// PinFile uploads r as a file named name.  At most MaxUpload bytes are
// accepted.
func (p *Pinner) PinFile(ctx context.Context, name string, r io.Reader) (*Pin, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}
	data, err := io.ReadAll(io.LimitReader(r, p.cfg.MaxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("ipfs: read upload: %w", err)
	}
	if int64(len(data)) > p.cfg.MaxUpload {
		return nil, ErrTooLarge
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	meta, _ := json.Marshal(map[string]string{"name": name})
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return nil, err
	}
	if err := mw.WriteField("pinataOptions", `{"cidVersion":0}`); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return p.post(ctx, "/pinning/pinFileToIPFS", mw.FormDataContentType(), &body)
}

// PinJSON pins v serialized as JSON.
func (p *Pinner) PinJSON(ctx context.Context, v any) (*Pin, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ipfs: encode json: %w", err)
	}
	return p.post(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(b))
}

func (p *Pinner) post(ctx context.Context, path, contentType string, body io.Reader) (*Pin, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	url := strings.TrimRight(p.cfg.APIURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("pinata_api_key", p.cfg.APIKey)
	req.Header.Set("pinata_secret_api_key", p.cfg.APISecret)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipfs: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &PinError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	var pr pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("ipfs: decode pin response: %w", err)
	}
	if pr.IpfsHash == "" {
		return nil, errors.New("ipfs: pin response has no hash")
	}
	p.log.Debug("pinned", zap.String("path", path), zap.String("hash", pr.IpfsHash))
	return &Pin{Hash: pr.IpfsHash, PinSize: pr.PinSize, Timestamp: pr.Timestamp, URL: p.GatewayURL(pr.IpfsHash)}, nil
}
