package config

import (
	"slices"
	"sync"

	"github.com/mr-tron/base58"
)

// Well-known exchange hot wallets used as funding sources.
const (
	BinanceAddress = "5tzFkiKscXHK5ZXCGbXZxdw7gTjjD1mBwuoFbhUvuAi9"
	KucoinAddress  = "BmFdpraQhkiDQE6SnfG5omcA1VwzqfXrwtNYBwWTymy6"
	BybitAddress   = "iGdFcQoyR2MwbXMHQskhmNsqddZ6rinsipHc4TNSdwu"
	MexcAddress    = "ASTyfSima4LLAdDgoFGkgqoKowG1LZFDr9fAQrg7iaJZ"
)

// AddressSet is a set of wallet addresses that is safe for concurrent use.
// Reads vastly outnumber writes, so it is guarded by a RWMutex.
type AddressSet struct {
	mu    sync.RWMutex
	addrs map[string]struct{}
}

// NewAddressSet creates a set holding the given addresses.
func NewAddressSet(addrs ...string) *AddressSet {
	s := &AddressSet{addrs: make(map[string]struct{}, len(addrs))}
	for _, a := range addrs {
		if a != "" {
			s.addrs[a] = struct{}{}
		}
	}
	return s
}

// Contains reports whether addr is in the set.
func (s *AddressSet) Contains(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.addrs[addr]
	return ok
}

// Add inserts addr. It reports whether the set changed.
func (s *AddressSet) Add(addr string) bool {
	if addr == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.addrs[addr]; ok {
		return false
	}
	s.addrs[addr] = struct{}{}
	return true
}

// Remove deletes addr. It reports whether the set changed.
func (s *AddressSet) Remove(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.addrs[addr]; !ok {
		return false
	}
	delete(s.addrs, addr)
	return true
}

// Len returns the number of addresses.
func (s *AddressSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.addrs)
}

// List returns the addresses in sorted order.
func (s *AddressSet) List() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.addrs))
	for a := range s.addrs {
		out = append(out, a)
	}
	s.mu.RUnlock()
	slices.Sort(out)
	return out
}

// ValidAddress reports whether addr looks like a Solana public key:
// base58 text decoding to exactly 32 bytes. It says nothing about whether the
// key exists on chain.
func ValidAddress(addr string) bool {
	b, err := base58.Decode(addr)
	return err == nil && len(b) == 32
}
