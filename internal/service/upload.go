package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/iliyamo/adspace-marketplace/internal/ipfs"
	"github.com/iliyamo/adspace-marketplace/internal/model"
)

// Upload pins a creative file and returns its gateway URL.
func (m *Marketplace) Upload(ctx context.Context, name string, r io.Reader) (*ipfs.Pin, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return nil, invalid("file", "name is required")
	}
	if m.pinner == nil || !m.pinner.Configured() {
		return nil, ErrPinningUnavailable
	}
	pin, err := m.pinner.PinFile(ctx, name, r)
	if err != nil {
		return nil, pinError(err)
	}
	return pin, nil
}

// CreativeRequest is the metadata of an ad creative shown during a rental.
type CreativeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	WebsiteURL  string `json:"website_url"`
}

// PinCreative pins creative metadata and returns the URI to pass as a
// rental's ad_metadata_uri.
func (m *Marketplace) PinCreative(ctx context.Context, req CreativeRequest) (*ipfs.Pin, error) {
	md := model.AdMetadata{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Image:       strings.TrimSpace(req.Image),
		WebsiteURL:  strings.TrimSpace(req.WebsiteURL),
	}
	if md.Name == "" {
		return nil, invalid("name", "is required")
	}
	if md.Image == "" {
		return nil, invalid("image", "is required")
	}
	if err := checkWebURL("website_url", md.WebsiteURL); err != nil {
		return nil, err
	}
	if m.pinner == nil || !m.pinner.Configured() {
		return nil, ErrPinningUnavailable
	}
	pin, err := m.pinner.PinJSON(ctx, md)
	if err != nil {
		return nil, pinError(err)
	}
	return pin, nil
}
