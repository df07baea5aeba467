package ipfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/iliyamo/adspace-marketplace/internal/model"
)

// maxMetadataBytes caps metadata documents read from the gateway.
const maxMetadataBytes = 1 << 20

// ErrBlockedURI is returned for metadata URIs outside http(s) and ipfs, or
// pointing at a non-public address other than the gateway.
var ErrBlockedURI = errors.New("ipfs: metadata uri not allowed")

// Fetcher reads metadata JSON referenced by token and rental URIs.  URIs
// come from the chain, so anything but the configured gateway must resolve
// to public addresses.
type Fetcher struct {
	gateway     string
	gatewayHost string
	http        *http.Client
	lookup      func(ctx context.Context, host string) ([]net.IPAddr, error)
}

func NewFetcher(gateway string, client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	gateway = strings.TrimRight(gateway, "/")
	f := &Fetcher{gateway: gateway, http: client, lookup: net.DefaultResolver.LookupIPAddr}
	if u, err := url.Parse(gateway); err == nil {
		f.gatewayHost = u.Host
	}
	return f
}

// Resolve rewrites ipfs:// URIs onto the gateway.  Other URIs are returned
// unchanged.
func (f *Fetcher) Resolve(uri string) string {
	if rest, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		rest = strings.TrimPrefix(rest, "ipfs/")
		return f.gateway + "/ipfs/" + rest
	}
	return uri
}

// Fetch downloads and decodes the metadata document at uri.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (*model.AdMetadata, error) {
	if uri == "" {
		return nil, fmt.Errorf("ipfs: empty metadata uri")
	}
	target := f.Resolve(uri)
	if err := f.allow(ctx, target); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipfs: fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipfs: fetch %s: status %d", uri, resp.StatusCode)
	}
	var md model.AdMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(&md); err != nil {
		return nil, fmt.Errorf("ipfs: decode %s: %w", uri, err)
	}
	md.Image = f.Resolve(md.Image)
	return &md, nil
}

func (f *Fetcher) allow(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrBlockedURI, raw)
	}
	if f.gatewayHost != "" && strings.EqualFold(u.Host, f.gatewayHost) {
		return nil
	}
	host := u.Hostname()
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = append(ips, ip)
	} else {
		addrs, err := f.lookup(ctx, host)
		if err != nil {
			return fmt.Errorf("ipfs: resolve %s: %w", host, err)
		}
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}
	for _, ip := range ips {
		if !publicIP(ip) {
			return fmt.Errorf("%w: %s resolves to %s", ErrBlockedURI, host, ip)
		}
	}
	return nil
}

func publicIP(ip net.IP) bool {
	return !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() &&
		!ip.IsLinkLocalUnicast() && !ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() && !ip.IsMulticast()
}
