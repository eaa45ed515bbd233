package rooms

import "testing"

func TestCacheResolve(t *testing.T) {
	c := NewCache()

	if _, ok := c.Resolve(1); ok {
		t.Fatalf("empty cache should not resolve")
	}

	c.Put(1, RoomInfo{WebRoomID: 777, OwnerNickname: "主播"})
	web, ok := c.Resolve(1)
	if !ok || web != 777 {
		t.Fatalf("resolve = %d/%v, want 777/true", web, ok)
	}
	info, ok := c.Info(1)
	if !ok || info.OwnerNickname != "主播" {
		t.Fatalf("info = %+v/%v", info, ok)
	}
}

func TestCacheIgnoresEmptyMapping(t *testing.T) {
	c := NewCache()
	c.Put(1, RoomInfo{WebRoomID: 0})
	if _, ok := c.Resolve(1); ok {
		t.Fatalf("zero web room id should not be stored")
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d, want 0", c.Len())
	}
}

func TestCacheOverwrite(t *testing.T) {
	c := NewCache()
	c.Put(1, RoomInfo{WebRoomID: 10})
	c.Put(1, RoomInfo{WebRoomID: 20, OwnerNickname: "新主播"})

	web, ok := c.Resolve(1)
	if !ok || web != 20 {
		t.Fatalf("resolve = %d/%v, want 20/true", web, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
}
