package normalize

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/you/barrage-hub/internal/capture"
	"github.com/you/barrage-hub/internal/core"
	"github.com/you/barrage-hub/internal/giftdedup"
	"github.com/you/barrage-hub/internal/rooms"
)

func newNormalizer(t *testing.T, whitelist []int64, seed map[int64]rooms.RoomInfo) *Normalizer {
	t.Helper()
	cache := rooms.NewCache()
	for raw, info := range seed {
		cache.Put(raw, info)
	}
	return New(cache, giftdedup.New(giftdedup.DefaultTTL), whitelist)
}

func chatEvent(roomID int64, content string, user *capture.RawUser) capture.Event {
	return capture.Event{
		Kind:   capture.KindChat,
		RoomID: roomID,
		MsgID:  42,
		Chat:   &capture.ChatEvent{Content: content, User: user},
	}
}

func TestRoomFilter(t *testing.T) {
	cases := []struct {
		name      string
		whitelist []int64
		seed      map[int64]rooms.RoomInfo
		roomID    int64
		want      bool
	}{
		{
			name:   "empty whitelist allows all",
			roomID: 100,
			want:   true,
		},
		{
			name:      "resolved room in whitelist",
			whitelist: []int64{7788},
			seed:      map[int64]rooms.RoomInfo{100: {WebRoomID: 7788}},
			roomID:    100,
			want:      true,
		},
		{
			name:      "resolved room outside whitelist",
			whitelist: []int64{7788},
			seed:      map[int64]rooms.RoomInfo{100: {WebRoomID: 9999}},
			roomID:    100,
			want:      false,
		},
		{
			name:      "unresolved room passes open",
			whitelist: []int64{7788},
			roomID:    100,
			want:      true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := newNormalizer(t, tc.whitelist, tc.seed)
			_, ok := n.Normalize(chatEvent(tc.roomID, "hi", &capture.RawUser{DisplayID: "d1"}))
			if ok != tc.want {
				t.Fatalf("allow = %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestChatMapping(t *testing.T) {
	n := newNormalizer(t, nil, map[int64]rooms.RoomInfo{100: {WebRoomID: 7788, OwnerNickname: "主播A"}})

	res, ok := n.Normalize(chatEvent(100, "你好", &capture.RawUser{
		ID:        9,
		DisplayID: "dy123",
		Nickname:  "小明",
		Level:     12,
		Pay:       &capture.PayGrade{Level: 3},
		Follow:    &capture.FollowInfo{FollowerCount: 10, FollowingCount: 20, FollowStatus: 1},
		FansClub:  &capture.FansClubData{ClubName: "小明家", Level: 4},
	}))
	if !ok {
		t.Fatalf("expected chat to normalize")
	}
	if res.Type != core.MsgTypeChat {
		t.Fatalf("type = %v", res.Type)
	}
	if res.WebRoomID != 7788 {
		t.Fatalf("web room id = %d", res.WebRoomID)
	}
	if res.Content != "你好" {
		t.Fatalf("content = %q", res.Content)
	}
	u := res.User
	if u == nil || u.Nickname != "小明" || u.PayLevel != 3 || u.FollowerCount != 10 || u.FansClub.Level != 4 {
		t.Fatalf("user mapping wrong: %+v", u)
	}

	var msg core.Msg
	if err := json.Unmarshal(res.Pack.Data, &msg); err != nil {
		t.Fatalf("unmarshal pack data: %v", err)
	}
	if msg.MsgID != 42 || msg.Content != "你好" {
		t.Fatalf("pack payload wrong: %+v", msg)
	}
}

func TestUserDefaults(t *testing.T) {
	n := newNormalizer(t, nil, nil)

	res, ok := n.Normalize(chatEvent(100, "hi", &capture.RawUser{DisplayID: "dy9"}))
	if !ok {
		t.Fatalf("expected normalize")
	}
	u := res.User
	if u.Nickname != "用户dy9" {
		t.Fatalf("default nickname = %q", u.Nickname)
	}
	if u.PayLevel != -1 || u.FollowerCount != -1 || u.FollowingCount != -1 || u.FollowStatus != -1 {
		t.Fatalf("unknown counters should default to -1: %+v", u)
	}
	if u.FansClub.ClubName != "" || u.FansClub.Level != 0 {
		t.Fatalf("fan club should default empty: %+v", u.FansClub)
	}
}

func TestSocialActions(t *testing.T) {
	n := newNormalizer(t, nil, nil)
	user := &capture.RawUser{DisplayID: "d", Nickname: "小红"}

	follow := capture.Event{
		Kind: capture.KindSocial, RoomID: 1, MsgID: 1,
		Social: &capture.SocialEvent{Action: capture.SocialActionFollow, User: user},
	}
	res, ok := n.Normalize(follow)
	if !ok || res.Type != core.MsgTypeSocial {
		t.Fatalf("follow: ok=%v type=%v", ok, res.Type)
	}
	if res.Content != "小红 关注了主播" {
		t.Fatalf("follow content = %q", res.Content)
	}

	share := capture.Event{
		Kind: capture.KindSocial, RoomID: 1, MsgID: 2,
		Social: &capture.SocialEvent{Action: capture.SocialActionShare, ShareTarget: "1", User: user},
	}
	res, ok = n.Normalize(share)
	if !ok || res.Type != core.MsgTypeShare {
		t.Fatalf("share: ok=%v type=%v", ok, res.Type)
	}
	if !strings.Contains(res.Content, "微信") {
		t.Fatalf("share content = %q", res.Content)
	}

	unknownTarget := capture.Event{
		Kind: capture.KindSocial, RoomID: 1, MsgID: 3,
		Social: &capture.SocialEvent{Action: capture.SocialActionShare, ShareTarget: "99", User: user},
	}
	res, ok = n.Normalize(unknownTarget)
	if !ok || !strings.Contains(res.Content, "未知") {
		t.Fatalf("unknown share target: ok=%v content=%q", ok, res.Content)
	}

	other := capture.Event{
		Kind: capture.KindSocial, RoomID: 1, MsgID: 4,
		Social: &capture.SocialEvent{Action: 2, User: user},
	}
	if _, ok := n.Normalize(other); ok {
		t.Fatalf("social action 2 should be dropped")
	}
}

func TestGiftDedupIntegration(t *testing.T) {
	n := newNormalizer(t, nil, nil)
	user := &capture.RawUser{DisplayID: "d", Nickname: "阿强"}

	gift := func(repeat int64, end int) capture.Event {
		return capture.Event{
			Kind: capture.KindGift, RoomID: 5, MsgID: repeat,
			Gift: &capture.GiftEvent{
				GiftID: 11, GroupID: 3, GiftName: "小心心", Combo: true,
				RepeatCount: repeat, RepeatEnd: end, User: user,
			},
		}
	}

	res, ok := n.Normalize(gift(3, 0))
	if !ok {
		t.Fatalf("first combo event should pass")
	}
	var g core.GiftMsg
	if err := json.Unmarshal(res.Pack.Data, &g); err != nil {
		t.Fatalf("unmarshal gift: %v", err)
	}
	if g.GiftCount != 3 || g.RepeatCount != 3 || !g.Combo {
		t.Fatalf("gift payload: %+v", g)
	}
	if !strings.Contains(res.Content, "增量3个") {
		t.Fatalf("gift content = %q", res.Content)
	}

	if _, ok := n.Normalize(gift(3, 0)); ok {
		t.Fatalf("duplicate cumulative count must be dropped")
	}

	res, ok = n.Normalize(gift(5, 0))
	if !ok {
		t.Fatalf("advancing count should pass")
	}
	if err := json.Unmarshal(res.Pack.Data, &g); err != nil {
		t.Fatalf("unmarshal gift: %v", err)
	}
	if g.GiftCount != 2 {
		t.Fatalf("delta = %d, want 2", g.GiftCount)
	}

	if _, ok := n.Normalize(gift(5, 1)); ok {
		t.Fatalf("terminal marker must not broadcast")
	}
}

func TestGiftToUserAppended(t *testing.T) {
	n := newNormalizer(t, nil, nil)
	ev := capture.Event{
		Kind: capture.KindGift, RoomID: 5, MsgID: 1,
		Gift: &capture.GiftEvent{
			GiftID: 2, GiftName: "玫瑰", RepeatCount: 1,
			User:   &capture.RawUser{DisplayID: "a", Nickname: "阿强"},
			ToUser: &capture.RawUser{DisplayID: "b", Nickname: "客座主播"},
		},
	}
	res, ok := n.Normalize(ev)
	if !ok {
		t.Fatalf("expected normalize")
	}
	if !strings.HasSuffix(res.Content, "，给客座主播") {
		t.Fatalf("content = %q", res.Content)
	}
}

func TestControlStreamEnd(t *testing.T) {
	n := newNormalizer(t, nil, nil)

	end := capture.Event{Kind: capture.KindControl, RoomID: 1, MsgID: 1, Control: &capture.ControlEvent{Status: 3}}
	res, ok := n.Normalize(end)
	if !ok || res.Type != core.MsgTypeStreamEnd || res.Content != "直播已结束" {
		t.Fatalf("stream end: ok=%v res=%+v", ok, res)
	}

	other := capture.Event{Kind: capture.KindControl, RoomID: 1, MsgID: 2, Control: &capture.ControlEvent{Status: 1}}
	if _, ok := n.Normalize(other); ok {
		t.Fatalf("non-terminal control status should be dropped")
	}
}

func TestReplyPack(t *testing.T) {
	n := newNormalizer(t, nil, map[int64]rooms.RoomInfo{100: {WebRoomID: 7788}})

	pack, ok := n.ReplyPack(chatEvent(100, "关键词", nil), "欢迎欢迎")
	if !ok {
		t.Fatalf("expected reply pack")
	}
	if pack.Type != core.MsgTypeChat {
		t.Fatalf("reply pack type = %v", pack.Type)
	}
	var msg core.Msg
	if err := json.Unmarshal(pack.Data, &msg); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if msg.Content != "欢迎欢迎" || msg.User == nil || msg.User.Nickname != "自动回复" {
		t.Fatalf("reply payload: %+v", msg)
	}
	if msg.WebRoomID != 7788 || msg.MsgID == 0 {
		t.Fatalf("reply envelope: %+v", msg)
	}
}
