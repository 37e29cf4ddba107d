//go:build !testmode

package timeauth

import "net/http"

// NewConfiguredDrandAuthority creates a DrandAuthority for production use.
func NewConfiguredDrandAuthority(cfg Config) *DrandAuthority {
	url, hash := cfg.DrandURL, cfg.ChainHash
	if url == "" {
		url = DefaultDrandURL
	}
	if hash == "" {
		hash = QuicknetChainHash
	}
	return NewDrandAuthorityFor(url, hash, http.DefaultClient, nil)
}
