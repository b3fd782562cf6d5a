package notifications

import "sync"

var (
	globalMu  sync.RWMutex
	globalHub Hub = NewMemoryHub()
)

// SetHub replaces the process-wide hub and returns the previous one. A nil
// hub resets to an empty memory hub.
func SetHub(h Hub) Hub {
	globalMu.Lock()
	defer globalMu.Unlock()
	prev := globalHub
	if h == nil {
		h = NewMemoryHub()
	}
	globalHub = h
	return prev
}

// GetHub returns the process-wide hub.
func GetHub() Hub {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalHub
}
