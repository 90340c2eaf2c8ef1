package core

import "sync"

// BaseRequestContext stores request scoped values set by middleware
// (verified claims, the resolved identity) for later handlers.
type BaseRequestContext struct {
	mu   sync.RWMutex
	data map[string]interface{}
}

// NewBaseRequestContext creates an empty BaseRequestContext
func NewBaseRequestContext() *BaseRequestContext {
	return &BaseRequestContext{data: make(map[string]interface{})}
}

// Set stores a value
func (c *BaseRequestContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]interface{})
	}
	c.data[key] = value
}

// Get returns the value stored under key, or nil
func (c *BaseRequestContext) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[key]
}

// GetString returns the value under key when it is a string
func (c *BaseRequestContext) GetString(key string) (string, bool) {
	s, ok := c.Get(key).(string)
	return s, ok
}

// Delete removes a value
func (c *BaseRequestContext) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}
