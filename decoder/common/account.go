package common

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// AccountSnapshot is the raw state of one on-chain account as captured by a fetcher.
// Snapshots are treated as immutable once built.
type AccountSnapshot struct {
	Address   solana.PublicKey `json:"address"`
	Owner     solana.PublicKey `json:"owner"`
	Data      []byte           `json:"data"`
	Lamports  uint64           `json:"lamports"`
	Slot      uint64           `json:"slot"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// AccountSet is the input handed to the price calculator: every account it may need,
// keyed by address.
type AccountSet map[solana.PublicKey]*AccountSnapshot

// Lookup returns the snapshot for addr, ignoring entries with nil data.
func (s AccountSet) Lookup(addr solana.PublicKey) (*AccountSnapshot, bool) {
	if s == nil || addr.IsZero() {
		return nil, false
	}
	snap, ok := s[addr]
	if !ok || snap == nil || snap.Data == nil {
		return nil, false
	}
	return snap, true
}

// Add inserts snapshots keyed by their address.
func (s AccountSet) Add(snaps ...*AccountSnapshot) {
	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		s[snap.Address] = snap
	}
}
