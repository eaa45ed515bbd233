package sink

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/you/barrage-hub/internal/core"
)

func openTestSink(t *testing.T) *SQLiteSink {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "barrages.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return s
}

func TestSQLiteWriteAndRecent(t *testing.T) {
	s := openTestSink(t)
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	entries := []Entry{
		{MsgID: 1, Ts: ts, Type: core.MsgTypeChat, RoomID: 100, WebRoomID: 900, Username: "小明", Content: "你好", PayloadJSON: `{"Content":"你好"}`},
		{MsgID: 2, Ts: ts.Add(time.Second), Type: core.MsgTypeGift, RoomID: 100, Username: "小红", Content: "送出 玫瑰"},
	}
	for _, e := range entries {
		if err := s.Write(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	if got[0].MsgID != 2 {
		t.Fatalf("expected newest first, got msg %d", got[0].MsgID)
	}
	if got[1].Username != "小明" || got[1].Content != "你好" {
		t.Fatalf("row mangled: %+v", got[1])
	}
	if got[1].Type != core.MsgTypeChat {
		t.Fatalf("type = %v", got[1].Type)
	}
	if !got[1].Ts.Equal(ts) {
		t.Fatalf("ts = %v, want %v", got[1].Ts, ts)
	}
}

func TestSQLiteDuplicateIgnored(t *testing.T) {
	s := openTestSink(t)
	e := Entry{MsgID: 5, Ts: time.Now(), Type: core.MsgTypeChat, RoomID: 7, Content: "dup"}

	if err := s.Write(e); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Write(e); err != nil {
		t.Fatalf("duplicate write should be a no-op: %v", err)
	}

	n, err := s.Count(context.Background(), 7)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestSQLiteCountByRoom(t *testing.T) {
	s := openTestSink(t)
	now := time.Now()
	for i, room := range []int64{1, 1, 2} {
		if err := s.Write(Entry{MsgID: int64(i + 1), Ts: now, Type: core.MsgTypeChat, RoomID: room}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	all, err := s.Count(context.Background(), 0)
	if err != nil {
		t.Fatalf("count all: %v", err)
	}
	if all != 3 {
		t.Fatalf("all = %d, want 3", all)
	}
	one, err := s.Count(context.Background(), 1)
	if err != nil {
		t.Fatalf("count room: %v", err)
	}
	if one != 2 {
		t.Fatalf("room 1 = %d, want 2", one)
	}
}
