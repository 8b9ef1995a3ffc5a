package model

import "time"

// Reserve resolution method tags recording which strategy produced the values.
const (
	ReserveViaGetReserves = "get_reserves"
	ReserveViaBalanceOf   = "balance_of"
	ReserveUnavailable    = "unavailable"
)

// ReserveSnapshot is the resolved reserve state of one pool-capable contract.
// Reserve values are decimal strings to survive 256-bit magnitudes.
type ReserveSnapshot struct {
	Address   string    `json:"address"`
	Token0    string    `json:"token0"`
	Token1    string    `json:"token1"`
	Reserve0  string    `json:"reserve0"`
	Reserve1  string    `json:"reserve1"`
	Method    string    `json:"method"`
	UpdatedAt time.Time `json:"updated_at"`
}
