package model

// AdMetadata is the JSON document pinned to IPFS and referenced by a token
// or rental URI.  Mint metadata carries ERC-721 style attributes; creative
// metadata carries websiteURL.
type AdMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	WebsiteURL  string      `json:"websiteURL,omitempty"`
	ExternalURL string      `json:"external_url,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// Attribute is a single trait entry.  Value is a string or a number.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// CurrentAd is what an embedding site needs to render the running creative.
type CurrentAd struct {
	URI        string `json:"uri"`
	Image      string `json:"image"`
	WebsiteURL string `json:"websiteURL"`
	Name       string `json:"name,omitempty"`
}
