package common

import (
	"sync"

	"github.com/gagliardetto/solana-go"

	dcommon "github.com/rexbrahh/lp-pricer/decoder/common"
)

// AccountStore holds the latest snapshot of every watched account.
type AccountStore interface {
	// Upsert stores snap unless a snapshot from a later slot is already held.
	// It reports whether snap was stored.
	Upsert(snap *dcommon.AccountSnapshot) bool

	// Get returns the latest snapshot for addr.
	Get(addr solana.PublicKey) (*dcommon.AccountSnapshot, bool)

	// Snapshot copies the requested accounts into a calculator input set.
	// Addresses not held are omitted.
	Snapshot(keys ...solana.PublicKey) dcommon.AccountSet

	// Delete removes an account, returning whether it was present.
	Delete(addr solana.PublicKey) bool

	// Size returns the number of accounts held.
	Size() int

	// PruneBeforeSlot drops accounts last written before slot that are not pinned.
	PruneBeforeSlot(slot uint64) int

	// Pin marks addresses that PruneBeforeSlot must keep.
	Pin(keys ...solana.PublicKey)

	// Unpin releases addresses so PruneBeforeSlot may drop them again.
	Unpin(keys ...solana.PublicKey)
}

// MemoryAccountStore is an in-memory AccountStore.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*dcommon.AccountSnapshot
	pinned   map[solana.PublicKey]struct{}
}

// NewMemoryAccountStore creates an empty store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts: make(map[solana.PublicKey]*dcommon.AccountSnapshot),
		pinned:   make(map[solana.PublicKey]struct{}),
	}
}

func (s *MemoryAccountStore) Upsert(snap *dcommon.AccountSnapshot) bool {
	if snap == nil || snap.Address.IsZero() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.accounts[snap.Address]; ok && held.Slot > snap.Slot {
		return false
	}
	s.accounts[snap.Address] = snap
	return true
}

func (s *MemoryAccountStore) Get(addr solana.PublicKey) (*dcommon.AccountSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.accounts[addr]
	return snap, ok
}

func (s *MemoryAccountStore) Snapshot(keys ...solana.PublicKey) dcommon.AccountSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(dcommon.AccountSet, len(keys))
	for _, k := range keys {
		if snap, ok := s.accounts[k]; ok {
			set[k] = snap
		}
	}
	return set
}

func (s *MemoryAccountStore) Delete(addr solana.PublicKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[addr]; !ok {
		return false
	}
	delete(s.accounts, addr)
	return true
}

func (s *MemoryAccountStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

func (s *MemoryAccountStore) PruneBeforeSlot(slot uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for addr, snap := range s.accounts {
		if _, keep := s.pinned[addr]; keep {
			continue
		}
		if snap.Slot < slot {
			delete(s.accounts, addr)
			pruned++
		}
	}
	return pruned
}

func (s *MemoryAccountStore) Pin(keys ...solana.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.pinned[k] = struct{}{}
	}
}

func (s *MemoryAccountStore) Unpin(keys ...solana.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.pinned, k)
	}
}
