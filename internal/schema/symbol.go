package schema

import (
	"strings"
	"sync"
)

// Symbol is a venue trading-pair ticker such as "BTCUSDT". Symbols are short
// interned strings with a stable 64-bit hash usable directly as a table key.
type Symbol string

// Asset is a single currency or token ticker such as "BTC".
type Asset string

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

func hash64(s string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}

// Hash returns the stable FNV-1a hash of the symbol. The hash is identical
// across processes and restarts, so it can key persisted tables.
func (s Symbol) Hash() uint64 { return hash64(string(s)) }

// Hash returns the stable FNV-1a hash of the asset.
func (a Asset) Hash() uint64 { return hash64(string(a)) }

// IsEmpty reports whether the symbol is unset.
func (s Symbol) IsEmpty() bool { return s == "" }

// IsEmpty reports whether the asset is unset.
func (a Asset) IsEmpty() bool { return a == "" }

var intern struct {
	mu  sync.RWMutex
	tab map[uint64]string
}

// InternSymbol canonicalises the ticker (trimmed, uppercased) and records it
// in the process-wide hash table so SymbolFromHash can resolve it later.
func InternSymbol(raw string) Symbol {
	s := strings.ToUpper(strings.TrimSpace(raw))
	store(hash64(s), s)
	return Symbol(s)
}

// InternAsset canonicalises the ticker and records it in the hash table.
func InternAsset(raw string) Asset {
	a := strings.ToUpper(strings.TrimSpace(raw))
	store(hash64(a), a)
	return Asset(a)
}

// SymbolFromHash resolves a previously interned symbol by its hash.
func SymbolFromHash(h uint64) (Symbol, bool) {
	intern.mu.RLock()
	s, ok := intern.tab[h]
	intern.mu.RUnlock()
	return Symbol(s), ok
}

// AssetFromHash resolves a previously interned asset by its hash.
func AssetFromHash(h uint64) (Asset, bool) {
	intern.mu.RLock()
	s, ok := intern.tab[h]
	intern.mu.RUnlock()
	return Asset(s), ok
}

func store(h uint64, s string) {
	intern.mu.RLock()
	_, ok := intern.tab[h]
	intern.mu.RUnlock()
	if ok {
		return
	}
	intern.mu.Lock()
	if intern.tab == nil {
		intern.tab = make(map[uint64]string, 256)
	}
	intern.tab[h] = s
	intern.mu.Unlock()
}
