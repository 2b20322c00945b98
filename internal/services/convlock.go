// Package services – per-conversation mutual exclusion.
//
// Two concurrent requests carrying the same conversation id would otherwise
// both read the prior message list, call the generation service, and append:
// a lost-update race. conversationLocks serializes locate→assemble→persist
// per conversation key within this process. Entries are reference-counted
// and removed as soon as no request holds or waits on them, so the map
// stays bounded by in-flight conversations.
package services

import "sync"

type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*conversationLock
}

type conversationLock struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*conversationLock)}
}

// acquire blocks until the lock for key is held and returns the release
// function. The release function must be called exactly once.
func (c *conversationLocks) acquire(key string) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &conversationLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}
