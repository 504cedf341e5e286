package types

import (
	"errors"
	"time"

	"github.com/rexbrahh/lp-pricer/pricing"
)

// HealthResponse represents the shape of /healthz responses.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Cache  string `json:"cache"`
}

// PriceResponse is the payload of the pool and token price endpoints.
type PriceResponse struct {
	Pool          string    `json:"pool"`
	TokenMint     string    `json:"token_mint"`
	Program       string    `json:"program"`
	PriceSOL      float64   `json:"price_sol"`
	SOLReserves   float64   `json:"sol_reserves"`
	TokenReserves float64   `json:"token_reserves"`
	Source        string    `json:"source"`
	FeePPM        *uint32   `json:"fee_ppm,omitempty"`
	Slot          uint64    `json:"slot"`
	ComputedAt    time.Time `json:"computed_at"`
}

// NewPriceResponse flattens a cached price for the API.
func NewPriceResponse(r *pricing.PriceResult) PriceResponse {
	return PriceResponse{
		Pool:          r.Pool.String(),
		TokenMint:     r.TokenMint.String(),
		Program:       r.ProgramKind.String(),
		PriceSOL:      r.PriceSOL,
		SOLReserves:   r.SOLReserves,
		TokenReserves: r.TokenReserves,
		Source:        string(r.Source),
		FeePPM:        r.FeeRate,
		Slot:          r.Slot,
		ComputedAt:    r.ComputedAt,
	}
}

// ErrorResponse is a generic API error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrNotFound indicates missing resources.
var ErrNotFound = errors.New("not found")
