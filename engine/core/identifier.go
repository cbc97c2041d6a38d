package core

import (
	"fmt"
	"sync"
)

// IdentifierPool hands out small integer identifiers, reusing released slots
// before growing. Identifier 0 is reserved so that a zero value can mean "none".
type IdentifierPool struct {
	mu     sync.Mutex
	owners []interface{}
}

func NewIdentifierPool() *IdentifierPool {
	return &IdentifierPool{}
}

func (ip *IdentifierPool) AcquireNewID(owner interface{}) uint32 {
	ip.mu.Lock()
	defer ip.mu.Unlock()

	if len(ip.owners) == 0 {
		ip.owners = make([]interface{}, 100)
		// slot 0 is never handed out
		ip.owners[0] = struct{}{}
	}
	length := uint32(len(ip.owners))
	for i := uint32(1); i < length; i++ {
		// Existing free spot. Take it.
		if ip.owners[i] == nil {
			ip.owners[i] = owner
			return i
		}
	}

	// If here, no existing free slots. Need a new id, so push one.
	ip.owners = append(ip.owners, owner)
	return uint32(len(ip.owners)) - 1
}

func (ip *IdentifierPool) ReleaseID(id uint32) error {
	ip.mu.Lock()
	defer ip.mu.Unlock()

	if len(ip.owners) == 0 {
		return fmt.Errorf("release of id %d: %w", id, ErrNotInitialized)
	}
	length := uint32(len(ip.owners))
	if id == 0 || id >= length {
		return fmt.Errorf("release of id %d (max=%d): %w", id, length-1, ErrOutOfRange)
	}

	// Just zero out the entry, making it available for use.
	ip.owners[id] = nil
	return nil
}

// Owner returns whatever was registered for id, or nil.
func (ip *IdentifierPool) Owner(id uint32) interface{} {
	ip.mu.Lock()
	defer ip.mu.Unlock()

	if id == 0 || id >= uint32(len(ip.owners)) {
		return nil
	}
	return ip.owners[id]
}
