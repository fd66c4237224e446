// Package agent implements the dashboard side of a conversation: a paged
// message cache fed by history fetches and a live feed channel that appends
// new traffic in real time.
package agent

import (
	"sync"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core/chat"
)

// PageCache accumulates a conversation's messages as the dashboard scrolls
// back through history pages, while live messages append to the newest page.
// A message id is admitted once across all pages, so history refetches and
// live duplicates collapse.
type PageCache struct {
	mu    sync.Mutex
	pages [][]chat.Message
	seen  map[string]struct{}
}

// NewPageCache returns an empty cache.
func NewPageCache() *PageCache {
	return &PageCache{seen: make(map[string]struct{})}
}

// AddOlderPage prepends a page fetched from history, oldest first. Messages
// already cached under any page are skipped. Returns how many were admitted.
func (c *PageCache) AddOlderPage(msgs []chat.Message) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	page := make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		if c.admitLocked(m.ID) {
			page = append(page, m)
		}
	}
	if len(page) == 0 {
		return 0
	}
	c.pages = append([][]chat.Message{page}, c.pages...)
	return len(page)
}

// AppendLive adds a message arriving over the feed to the newest page.
// Returns false if the id was already cached.
func (c *PageCache) AppendLive(m chat.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.admitLocked(m.ID) {
		return false
	}
	if len(c.pages) == 0 {
		c.pages = append(c.pages, nil)
	}
	last := len(c.pages) - 1
	c.pages[last] = append(c.pages[last], m)
	return true
}

func (c *PageCache) admitLocked(id string) bool {
	if id == "" {
		return true
	}
	if _, dup := c.seen[id]; dup {
		return false
	}
	c.seen[id] = struct{}{}
	return true
}

// Messages returns the full conversation in order, oldest first.
func (c *PageCache) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int
	for _, p := range c.pages {
		total += len(p)
	}
	out := make([]chat.Message, 0, total)
	for _, p := range c.pages {
		out = append(out, p...)
	}
	return out
}

// Len reports the number of cached messages.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int
	for _, p := range c.pages {
		total += len(p)
	}
	return total
}

// Reset drops everything, for switching to another conversation.
func (c *PageCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = nil
	c.seen = make(map[string]struct{})
}
