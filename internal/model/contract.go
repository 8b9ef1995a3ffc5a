package model

import "time"

// Contract analysis lifecycle states. A contract never returns to pending.
const (
	AnalysisPending   = "pending"
	AnalysisValidated = "validated"
	AnalysisFailed    = "failed"
)

// Capability tags naming the external calls a contract is expected to answer.
const (
	CapName     = "name"
	CapSymbol   = "symbol"
	CapDecimals = "decimals"
	CapTokenURI = "token_uri"
	CapReserves = "reserves"
)

// Contract is a discovered on-chain entity and its enrichment state.
// Addresses are stored lowercase hex.
type Contract struct {
	Address        string     `json:"address"`
	TxCount        int64      `json:"tx_count"`
	LastSeen       time.Time  `json:"last_seen"`
	DiscoveredVia  string     `json:"discovered_via"`
	Capabilities   []string   `json:"capabilities"`
	AnalysisStatus string     `json:"analysis_status"`
	TokenName      *string    `json:"token_name,omitempty"`
	TokenSymbol    *string    `json:"token_symbol,omitempty"`
	TokenDecimals  *int32     `json:"token_decimals,omitempty"`
	TokenURI       *string    `json:"token_uri,omitempty"`
	Errors         []string   `json:"errors,omitempty"`
	ValidatedAt    *time.Time `json:"validated_at,omitempty"`
}

// HasCapability reports whether the contract carries the given tag.
func (c *Contract) HasCapability(tag string) bool {
	for _, have := range c.Capabilities {
		if have == tag {
			return true
		}
	}
	return false
}
