// Package normalize converts raw capture events into canonical barrage
// messages ready for broadcast.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/you/barrage-hub/internal/capture"
	"github.com/you/barrage-hub/internal/core"
	"github.com/you/barrage-hub/internal/giftdedup"
	"github.com/you/barrage-hub/internal/rooms"
)

// Result is one normalized message plus the fields downstream stages need
// without re-parsing the pack payload.
type Result struct {
	Pack      core.Pack
	Type      core.MsgType
	RoomID    int64
	WebRoomID int64
	Content   string
	User      *core.User
}

// Normalizer applies the room whitelist filter and per-kind field mapping.
// All configuration is fixed at construction.
type Normalizer struct {
	resolver  rooms.Resolver
	gifts     *giftdedup.Cache
	whitelist map[int64]struct{}
	now       func() time.Time
}

func New(resolver rooms.Resolver, gifts *giftdedup.Cache, whitelist []int64) *Normalizer {
	n := &Normalizer{
		resolver: resolver,
		gifts:    gifts,
		now:      time.Now,
	}
	if len(whitelist) > 0 {
		n.whitelist = make(map[int64]struct{}, len(whitelist))
		for _, id := range whitelist {
			n.whitelist[id] = struct{}{}
		}
	}
	return n
}

// allow applies the room whitelist. An empty whitelist allows everything.
// Rooms with no cached mapping are allowed through: the mapping fills in
// lazily, and blocking until then would silently eat the first events of
// every session.
func (n *Normalizer) allow(rawRoomID int64) bool {
	if len(n.whitelist) == 0 {
		return true
	}
	webID, ok := n.resolver.Resolve(rawRoomID)
	if !ok || webID <= 0 {
		return true
	}
	_, allowed := n.whitelist[webID]
	return allowed
}

func (n *Normalizer) webRoomID(rawRoomID int64) int64 {
	webID, ok := n.resolver.Resolve(rawRoomID)
	if !ok {
		return 0
	}
	return webID
}

// Normalize maps one raw event to a broadcast-ready result. ok is false
// when the event is filtered, rejected by gift dedup, or carries nothing to
// broadcast.
func (n *Normalizer) Normalize(ev capture.Event) (Result, bool) {
	if !n.allow(ev.RoomID) {
		return Result{}, false
	}

	base := core.Msg{
		MsgID:     ev.MsgID,
		RoomID:    ev.RoomID,
		WebRoomID: n.webRoomID(ev.RoomID),
	}

	switch ev.Kind {
	case capture.KindChat:
		if ev.Chat == nil {
			return Result{}, false
		}
		base.Content = ev.Chat.Content
		base.User = mapUser(ev.Chat.User)
		return n.pack(ev, core.MsgTypeChat, base, base)

	case capture.KindLike:
		if ev.Like == nil {
			return Result{}, false
		}
		base.User = mapUser(ev.Like.User)
		base.Content = fmt.Sprintf("%s 为主播点了%d个赞，总点赞%d", nickname(base.User), ev.Like.Count, ev.Like.Total)
		enty := core.LikeMsg{Msg: base, Count: ev.Like.Count, Total: ev.Like.Total}
		return n.pack(ev, core.MsgTypeLike, base, enty)

	case capture.KindMember:
		if ev.Member == nil {
			return Result{}, false
		}
		base.User = mapUser(ev.Member.User)
		base.Content = fmt.Sprintf("%s 来了 直播间人数:%d", nickname(base.User), ev.Member.MemberCount)
		enty := core.MemberMsg{Msg: base, CurrentCount: ev.Member.MemberCount}
		return n.pack(ev, core.MsgTypeMember, base, enty)

	case capture.KindSocial:
		return n.normalizeSocial(ev, base)

	case capture.KindGift:
		return n.normalizeGift(ev, base)

	case capture.KindRoomUserSeq:
		if ev.UserSeq == nil {
			return Result{}, false
		}
		seq := ev.UserSeq
		base.Content = fmt.Sprintf("当前直播间人数 %s，累计直播间人数 %s", seq.OnlineForAnchor, seq.TotalPVForAnchor)
		enty := core.UserSeqMsg{
			Msg:                base,
			OnlineUserCount:    seq.Total,
			TotalUserCount:     seq.TotalUser,
			OnlineUserCountStr: seq.OnlineForAnchor,
			TotalUserCountStr:  seq.TotalPVForAnchor,
		}
		return n.pack(ev, core.MsgTypeUserSeq, base, enty)

	case capture.KindFansclub:
		if ev.Fansclub == nil {
			return Result{}, false
		}
		base.Content = ev.Fansclub.Content
		base.User = mapUser(ev.Fansclub.User)
		enty := core.FansclubMsg{Msg: base, Type: ev.Fansclub.Type}
		if base.User != nil {
			enty.Level = base.User.FansClub.Level
		}
		return n.pack(ev, core.MsgTypeFansclub, base, enty)

	case capture.KindControl:
		if ev.Control == nil || ev.Control.Status != capture.ControlStatusStreamEnded {
			return Result{}, false
		}
		base.Content = "直播已结束"
		return n.pack(ev, core.MsgTypeStreamEnd, base, base)

	default:
		return Result{}, false
	}
}

func (n *Normalizer) normalizeSocial(ev capture.Event, base core.Msg) (Result, bool) {
	if ev.Social == nil {
		return Result{}, false
	}
	base.User = mapUser(ev.Social.User)

	switch ev.Social.Action {
	case capture.SocialActionFollow:
		base.Content = fmt.Sprintf("%s 关注了主播", nickname(base.User))
		return n.pack(ev, core.MsgTypeSocial, base, base)

	case capture.SocialActionShare:
		target := core.ShareTargetUnknown
		if code, err := strconv.Atoi(ev.Social.ShareTarget); err == nil {
			target = core.ParseShareTarget(code)
		}
		base.Content = fmt.Sprintf("%s 分享了直播间到%s", nickname(base.User), target)
		enty := core.ShareMsg{Msg: base, ShareType: target}
		return n.pack(ev, core.MsgTypeShare, base, enty)

	default:
		return Result{}, false
	}
}

func (n *Normalizer) normalizeGift(ev capture.Event, base core.Msg) (Result, bool) {
	if ev.Gift == nil {
		return Result{}, false
	}
	gift := ev.Gift

	key := giftdedup.Key(ev.RoomID, gift.GiftID, gift.GroupID)
	res := n.gifts.Observe(key, gift.GroupID, gift.RepeatCount, gift.Combo, gift.RepeatEnd == 1)
	if !res.Accepted {
		return Result{}, false
	}

	base.User = mapUser(gift.User)
	comboTag := ""
	if gift.Combo {
		comboTag = "(可连击)"
	}
	base.Content = fmt.Sprintf("%s 送出 %s%s x %d个，增量%d个",
		nickname(base.User), gift.GiftName, comboTag, gift.RepeatCount, res.Delta)

	enty := core.GiftMsg{
		Msg:          base,
		GiftID:       gift.GiftID,
		GiftName:     gift.GiftName,
		GroupID:      gift.GroupID,
		Combo:        gift.Combo,
		RepeatCount:  gift.RepeatCount,
		GiftCount:    res.Delta,
		DiamondCount: gift.DiamondCount,
		ImgURL:       gift.ImgURL,
		ToUser:       mapUser(gift.ToUser),
	}
	if enty.ToUser != nil {
		enty.Content += "，给" + enty.ToUser.Nickname
		base.Content = enty.Content
	}
	return n.pack(ev, core.MsgTypeGift, base, enty)
}

// ReplyPack wraps an auto-reply as a synthetic chat message in the same
// room and origin as the chat that triggered it.
func (n *Normalizer) ReplyPack(ev capture.Event, reply string) (core.Pack, bool) {
	msg := core.Msg{
		MsgID:     n.now().UnixNano(),
		RoomID:    ev.RoomID,
		WebRoomID: n.webRoomID(ev.RoomID),
		Content:   reply,
		User: &core.User{
			Nickname:       "自动回复",
			DisplayID:      "0",
			PayLevel:       -1,
			FollowerCount:  -1,
			FollowingCount: -1,
			FollowStatus:   -1,
		},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return core.Pack{}, false
	}
	return core.NewPack(core.MsgTypeChat, data, ev.Process), true
}

func (n *Normalizer) pack(ev capture.Event, t core.MsgType, base core.Msg, enty any) (Result, bool) {
	data, err := json.Marshal(enty)
	if err != nil {
		return Result{}, false
	}
	return Result{
		Pack:      core.NewPack(t, data, ev.Process),
		Type:      t,
		RoomID:    base.RoomID,
		WebRoomID: base.WebRoomID,
		Content:   base.Content,
		User:      base.User,
	}, true
}

func nickname(u *core.User) string {
	if u == nil {
		return ""
	}
	return u.Nickname
}

// mapUser derives the canonical user snapshot, defaulting the fields the
// raw event omitted.
func mapUser(raw *capture.RawUser) *core.User {
	if raw == nil {
		return nil
	}
	u := &core.User{
		ID:             raw.ID,
		ShortID:        raw.ShortID,
		DisplayID:      raw.DisplayID,
		Nickname:       raw.Nickname,
		Level:          raw.Level,
		Gender:         raw.Gender,
		SecUID:         raw.SecUID,
		HeadImgURL:     raw.AvatarURL,
		PayLevel:       -1,
		FollowerCount:  -1,
		FollowingCount: -1,
		FollowStatus:   -1,
	}
	if u.Nickname == "" {
		u.Nickname = "用户" + raw.DisplayID
	}
	if raw.Pay != nil {
		u.PayLevel = raw.Pay.Level
	}
	if raw.Follow != nil {
		u.FollowerCount = raw.Follow.FollowerCount
		u.FollowingCount = raw.Follow.FollowingCount
		u.FollowStatus = raw.Follow.FollowStatus
	}
	if raw.FansClub != nil {
		u.FansClub = core.FansClub{ClubName: raw.FansClub.ClubName, Level: raw.FansClub.Level}
	}
	return u
}
