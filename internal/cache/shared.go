package cache

import "sync"

var (
	sharedMu    sync.Mutex
	sharedStore *Store
)

// Init builds the process-wide store from cfg and starts its sweep. A store
// installed by an earlier call is closed first.
func Init(cfg Config) *Store {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedStore != nil {
		sharedStore.Close()
	}
	sharedStore = New(cfg)
	sharedStore.Start()
	return sharedStore
}

// Shared returns the process-wide store, creating one with default settings
// if Init has not been called.
func Shared() *Store {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedStore == nil {
		sharedStore = New(Config{})
		sharedStore.Start()
	}
	return sharedStore
}
