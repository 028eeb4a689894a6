package session

import (
	"sync"

	"github.com/pitabwire/erpconsole/model"
)

// Current holds the identity of the signed-in user for a single client
// process. A nil identity means nobody is signed in.
type Current struct {
	mu       sync.RWMutex
	identity *model.Identity
}

// Set stores a copy of identity.
func (c *Current) Set(identity *model.Identity) {
	c.mu.Lock()
	c.identity = identity.Clone()
	c.mu.Unlock()
}

// Get returns a copy of the stored identity, or nil.
func (c *Current) Get() *model.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity.Clone()
}

// Clear forgets the stored identity.
func (c *Current) Clear() {
	c.mu.Lock()
	c.identity = nil
	c.mu.Unlock()
}
