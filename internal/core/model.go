package core

import "encoding/json"

// MsgType identifies the kind of a broadcast barrage message. The numeric
// values are part of the wire contract with subscribers.
type MsgType int

const (
	MsgTypeChat      MsgType = 1 // 弹幕消息
	MsgTypeLike      MsgType = 2 // 点赞消息
	MsgTypeMember    MsgType = 3 // 进直播间
	MsgTypeSocial    MsgType = 4 // 关注消息
	MsgTypeGift      MsgType = 5 // 礼物消息
	MsgTypeUserSeq   MsgType = 6 // 直播间统计
	MsgTypeFansclub  MsgType = 7 // 粉丝团消息
	MsgTypeShare     MsgType = 8 // 直播间分享
	MsgTypeStreamEnd MsgType = 9 // 下播
)

func (t MsgType) String() string {
	switch t {
	case MsgTypeChat:
		return "弹幕消息"
	case MsgTypeLike:
		return "点赞消息"
	case MsgTypeMember:
		return "进直播间"
	case MsgTypeSocial:
		return "关注消息"
	case MsgTypeGift:
		return "礼物消息"
	case MsgTypeUserSeq:
		return "直播间统计"
	case MsgTypeFansclub:
		return "粉丝团消息"
	case MsgTypeShare:
		return "直播间分享"
	case MsgTypeStreamEnd:
		return "下播"
	default:
		return "未知消息"
	}
}

// FansClub is the sender's fan-club membership at the time of the event.
type FansClub struct {
	ClubName string `json:"ClubName"`
	Level    int    `json:"Level"`
}

// User is an immutable snapshot of the sender, derived per event.
// Counters the raw event did not carry are -1.
type User struct {
	ID             int64    `json:"Id"`
	ShortID        int64    `json:"ShortId"`
	DisplayID      string   `json:"DisplayId"`
	Nickname       string   `json:"Nickname"`
	Level          int      `json:"Level"`
	PayLevel       int      `json:"PayLevel"`
	Gender         int      `json:"Gender"`
	HeadImgURL     string   `json:"HeadImgUrl"`
	SecUID         string   `json:"SecUid"`
	FollowerCount  int64    `json:"FollowerCount"`
	FollowingCount int64    `json:"FollowingCount"`
	FollowStatus   int      `json:"FollowStatus"`
	FansClub       FansClub `json:"FansClub"`
}

// Msg is the canonical message envelope shared by every barrage kind.
type Msg struct {
	MsgID     int64  `json:"MsgId"`
	RoomID    int64  `json:"RoomId"`
	WebRoomID int64  `json:"WebRoomId"`
	Content   string `json:"Content"`
	User      *User  `json:"User,omitempty"`
}

// GiftMsg carries a gift event. RepeatCount is the cumulative combo count
// reported upstream; GiftCount is the deduplicated increment.
type GiftMsg struct {
	Msg
	GiftID       int64  `json:"GiftId"`
	GiftName     string `json:"GiftName"`
	GroupID      int64  `json:"GroupId"`
	Combo        bool   `json:"Combo"`
	RepeatCount  int64  `json:"RepeatCount"`
	GiftCount    int64  `json:"GiftCount"`
	DiamondCount int    `json:"DiamondCount"`
	ImgURL       string `json:"ImgUrl"`
	ToUser       *User  `json:"ToUser,omitempty"`
}

type LikeMsg struct {
	Msg
	Count int64 `json:"Count"`
	Total int64 `json:"Total"`
}

type MemberMsg struct {
	Msg
	CurrentCount int64 `json:"CurrentCount"`
}

type ShareMsg struct {
	Msg
	ShareType ShareTarget `json:"ShareType"`
}

type FansclubMsg struct {
	Msg
	Type  int `json:"Type"`
	Level int `json:"Level"`
}

// UserSeqMsg carries room audience statistics. The string counts are the
// display strings the platform shows to the anchor ("10万+" style).
type UserSeqMsg struct {
	Msg
	OnlineUserCount    int64  `json:"OnlineUserCount"`
	TotalUserCount     int64  `json:"TotalUserCount"`
	OnlineUserCountStr string `json:"OnlineUserCountStr"`
	TotalUserCountStr  string `json:"TotalUserCountStr"`
}

// ShareTarget is the destination of a room share.
type ShareTarget int

const (
	ShareTargetUnknown ShareTarget = 0
	ShareTargetWeChat  ShareTarget = 1
	ShareTargetMoments ShareTarget = 2
	ShareTargetWeibo   ShareTarget = 3
	ShareTargetQZone   ShareTarget = 4
	ShareTargetQQ      ShareTarget = 5
	ShareTargetFriend  ShareTarget = 112
)

func (s ShareTarget) String() string {
	switch s {
	case ShareTargetWeChat:
		return "微信"
	case ShareTargetMoments:
		return "朋友圈"
	case ShareTargetWeibo:
		return "微博"
	case ShareTargetQZone:
		return "QQ空间"
	case ShareTargetQQ:
		return "QQ"
	case ShareTargetFriend:
		return "好友"
	default:
		return "未知"
	}
}

// ParseShareTarget maps a raw share target code to the enum; codes outside
// the enum collapse to ShareTargetUnknown.
func ParseShareTarget(code int) ShareTarget {
	switch ShareTarget(code) {
	case ShareTargetWeChat, ShareTargetMoments, ShareTargetWeibo,
		ShareTargetQZone, ShareTargetQQ, ShareTargetFriend:
		return ShareTarget(code)
	default:
		return ShareTargetUnknown
	}
}

// Pack is the self-describing envelope written to every subscriber socket.
type Pack struct {
	Type    MsgType         `json:"Type"`
	Data    json.RawMessage `json:"Data"`
	Process string          `json:"Process,omitempty"`
}

// NewPack wraps an already-marshaled message entity.
func NewPack(t MsgType, data []byte, process string) Pack {
	return Pack{Type: t, Data: json.RawMessage(data), Process: process}
}
