package capture

// Kind tags the raw event union.
type Kind string

const (
	KindChat        Kind = "chat"
	KindLike        Kind = "like"
	KindMember      Kind = "member"
	KindSocial      Kind = "social"
	KindGift        Kind = "gift"
	KindRoomUserSeq Kind = "room_user_seq"
	KindFansclub    Kind = "fansclub"
	KindControl     Kind = "control"
)

// Event is one raw typed notification from the capture component. Exactly
// one kind-specific payload pointer is set, matching Kind. RoomID is the
// platform-internal room id, not the site-facing one.
type Event struct {
	Kind    Kind   `json:"kind"`
	RoomID  int64  `json:"room_id"`
	MsgID   int64  `json:"msg_id"`
	Process string `json:"process,omitempty"`

	// WebRoomID and Owner are hints the capture component attaches when it
	// has already resolved the room; zero/empty when unknown.
	WebRoomID int64  `json:"web_room_id,omitempty"`
	Owner     string `json:"owner,omitempty"`

	Chat     *ChatEvent        `json:"chat,omitempty"`
	Like     *LikeEvent        `json:"like,omitempty"`
	Member   *MemberEvent      `json:"member,omitempty"`
	Social   *SocialEvent      `json:"social,omitempty"`
	Gift     *GiftEvent        `json:"gift,omitempty"`
	UserSeq  *RoomUserSeqEvent `json:"room_user_seq,omitempty"`
	Fansclub *FansclubEvent    `json:"fansclub,omitempty"`
	Control  *ControlEvent     `json:"control,omitempty"`
}

// RawUser mirrors the capture component's user block. Optional sub-records
// are nil when the platform omitted them.
type RawUser struct {
	ID        int64  `json:"id"`
	ShortID   int64  `json:"short_id"`
	DisplayID string `json:"display_id"`
	Nickname  string `json:"nickname"`
	Level     int    `json:"level"`
	Gender    int    `json:"gender"`
	SecUID    string `json:"sec_uid"`
	AvatarURL string `json:"avatar_url"`

	Pay      *PayGrade     `json:"pay,omitempty"`
	Follow   *FollowInfo   `json:"follow,omitempty"`
	FansClub *FansClubData `json:"fansclub,omitempty"`
}

type PayGrade struct {
	Level int `json:"level"`
}

type FollowInfo struct {
	FollowerCount  int64 `json:"follower_count"`
	FollowingCount int64 `json:"following_count"`
	FollowStatus   int   `json:"follow_status"`
}

type FansClubData struct {
	ClubName string `json:"club_name"`
	Level    int    `json:"level"`
}

type ChatEvent struct {
	Content string   `json:"content"`
	User    *RawUser `json:"user,omitempty"`
}

type LikeEvent struct {
	Count int64    `json:"count"`
	Total int64    `json:"total"`
	User  *RawUser `json:"user,omitempty"`
}

type MemberEvent struct {
	MemberCount int64    `json:"member_count"`
	User        *RawUser `json:"user,omitempty"`
}

// SocialEvent covers both follows (Action 1) and room shares (Action 3).
type SocialEvent struct {
	Action      int      `json:"action"`
	ShareTarget string   `json:"share_target,omitempty"`
	User        *RawUser `json:"user,omitempty"`
}

type GiftEvent struct {
	GiftID       int64    `json:"gift_id"`
	GroupID      int64    `json:"group_id"`
	GiftName     string   `json:"gift_name"`
	DiamondCount int      `json:"diamond_count"`
	Combo        bool     `json:"combo"`
	RepeatCount  int64    `json:"repeat_count"`
	RepeatEnd    int      `json:"repeat_end"`
	ImgURL       string   `json:"img_url,omitempty"`
	User         *RawUser `json:"user,omitempty"`
	ToUser       *RawUser `json:"to_user,omitempty"`
}

type RoomUserSeqEvent struct {
	Total            int64  `json:"total"`
	TotalUser        int64  `json:"total_user"`
	OnlineForAnchor  string `json:"online_for_anchor"`
	TotalPVForAnchor string `json:"total_pv_for_anchor"`
}

type FansclubEvent struct {
	Type    int      `json:"type"`
	Content string   `json:"content"`
	User    *RawUser `json:"user,omitempty"`
}

type ControlEvent struct {
	Status int `json:"status"`
}

// ControlStatusStreamEnded is the control status signalling the stream went
// offline.
const ControlStatusStreamEnded = 3

const (
	// SocialActionFollow marks a follow notification.
	SocialActionFollow = 1
	// SocialActionShare marks a room-share notification.
	SocialActionShare = 3
)
