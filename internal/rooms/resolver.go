// Package rooms maps platform-internal room ids to their site-facing web
// room ids and owner info. Mappings arrive opportunistically from the
// capture feed, so lookups can miss for rooms not seen yet.
package rooms

import "sync"

// RoomInfo is the display info known for a room.
type RoomInfo struct {
	WebRoomID     int64
	OwnerNickname string
}

// Resolver resolves raw room ids. Resolve reports ok=false when no mapping
// is cached; callers decide how to degrade.
type Resolver interface {
	Resolve(rawRoomID int64) (webRoomID int64, ok bool)
	Info(rawRoomID int64) (RoomInfo, bool)
}

// Cache is a mutex-guarded in-memory Resolver.
type Cache struct {
	mu    sync.RWMutex
	rooms map[int64]RoomInfo
}

func NewCache() *Cache {
	return &Cache{rooms: make(map[int64]RoomInfo)}
}

// Put records or updates the mapping for a raw room id. Entries with a
// non-positive web room id are ignored.
func (c *Cache) Put(rawRoomID int64, info RoomInfo) {
	if info.WebRoomID <= 0 {
		return
	}
	c.mu.Lock()
	c.rooms[rawRoomID] = info
	c.mu.Unlock()
}

func (c *Cache) Resolve(rawRoomID int64) (int64, bool) {
	c.mu.RLock()
	info, ok := c.rooms[rawRoomID]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return info.WebRoomID, true
}

func (c *Cache) Info(rawRoomID int64) (RoomInfo, bool) {
	c.mu.RLock()
	info, ok := c.rooms[rawRoomID]
	c.mu.RUnlock()
	return info, ok
}

// Len reports the number of cached rooms.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}
