// Package directory tracks the pools being priced and the auxiliary accounts each one
// reads, so an update to a vault or mint can be routed back to its pools.
package directory

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/pricing"
)

// Entry is one tracked pool.
type Entry struct {
	Pool         solana.PublicKey   `json:"pool"`
	Kind         common.ProgramKind `json:"kind"`
	BaseMint     solana.PublicKey   `json:"base_mint"`
	QuoteMint    solana.PublicKey   `json:"quote_mint"`
	Info         *common.PoolInfo   `json:"info,omitempty"`
	Dependencies []solana.PublicKey `json:"dependencies"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Request is the pricing request for the entry.
func (e Entry) Request() pricing.PoolRequest {
	return pricing.PoolRequest{
		Pool:      e.Pool,
		Kind:      e.Kind,
		BaseMint:  e.BaseMint,
		QuoteMint: e.QuoteMint,
	}
}

// Directory stores tracked pools keyed by pool address.
type Directory interface {
	Get(pool solana.PublicKey) (Entry, bool)
	Put(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, pool solana.PublicKey) error
	Entries() []Entry
	Len() int
	// PoolsFor returns the pools whose pricing reads account.
	PoolsFor(account solana.PublicKey) []solana.PublicKey
}

// MemoryDirectory is an in-process Directory.
type MemoryDirectory struct {
	mu      sync.RWMutex
	entries map[solana.PublicKey]Entry
	// dependency account -> pools reading it
	index map[solana.PublicKey]map[solana.PublicKey]struct{}
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		entries: make(map[solana.PublicKey]Entry),
		index:   make(map[solana.PublicKey]map[solana.PublicKey]struct{}),
	}
}

func (d *MemoryDirectory) Get(pool solana.PublicKey) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[pool]
	return e, ok
}

// Put inserts or replaces the entry and reindexes its dependencies.
func (d *MemoryDirectory) Put(_ context.Context, entry Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.put(entry)
	return nil
}

func (d *MemoryDirectory) put(entry Entry) {
	if old, ok := d.entries[entry.Pool]; ok {
		d.unindex(old)
	}
	d.entries[entry.Pool] = entry
	for _, dep := range entry.Dependencies {
		pools, ok := d.index[dep]
		if !ok {
			pools = make(map[solana.PublicKey]struct{})
			d.index[dep] = pools
		}
		pools[entry.Pool] = struct{}{}
	}
}

func (d *MemoryDirectory) Delete(_ context.Context, pool solana.PublicKey) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.entries[pool]; ok {
		d.unindex(old)
		delete(d.entries, pool)
	}
	return nil
}

func (d *MemoryDirectory) unindex(entry Entry) {
	for _, dep := range entry.Dependencies {
		pools := d.index[dep]
		delete(pools, entry.Pool)
		if len(pools) == 0 {
			delete(d.index, dep)
		}
	}
}

// Entries returns a copy of every entry in no particular order.
func (d *MemoryDirectory) Entries() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	return out
}

func (d *MemoryDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

func (d *MemoryDirectory) PoolsFor(account solana.PublicKey) []solana.PublicKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pools := d.index[account]
	out := make([]solana.PublicKey, 0, len(pools))
	for p := range pools {
		out = append(out, p)
	}
	return out
}

// Accounts lists every pool and dependency address the directory needs watched.
func (d *MemoryDirectory) Accounts() []solana.PublicKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]solana.PublicKey, 0, len(d.entries)+len(d.index))
	for p := range d.entries {
		out = append(out, p)
	}
	for dep := range d.index {
		if _, isPool := d.entries[dep]; !isPool {
			out = append(out, dep)
		}
	}
	return out
}
