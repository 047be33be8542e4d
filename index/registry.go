package index

import (
	"fmt"
	"slices"
	"sync"
)

// Opener opens or creates an index from cfg.
type Opener func(cfg Config) (Index, error)

var (
	registryMu sync.RWMutex
	registry   = map[Kind]Opener{}
)

// Register makes an engine available to Open.
//
// Engine packages call this from an init() function.
func Register(kind Kind, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = open
}

// Open validates cfg and dispatches to the engine registered for kind.
func Open(kind Kind, cfg Config) (Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	open, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}

	return open(cfg)
}

// Registered returns the registered kinds in ascending order.
func Registered() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
