package models

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"displayName"`
	Bio             string    `json:"bio,omitempty"`
	AvatarURL       string    `json:"avatarUrl,omitempty"`
	BannerURL       string    `json:"bannerUrl,omitempty"`
	PasswordHash    string    `json:"passwordHash,omitempty"`
	SubscriberCount int64     `json:"subscriberCount"`
	VideoCount      int64     `json:"videoCount"`
	TotalViews      int64     `json:"totalViews"`
	IsBanned        bool      `json:"isBanned"`
	IsAdmin         bool      `json:"isAdmin"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Public returns a copy of the user without credential material.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

type Privacy string

const (
	PrivacyPublic   Privacy = "public"
	PrivacyUnlisted Privacy = "unlisted"
	PrivacyPrivate  Privacy = "private"
)

func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyUnlisted, PrivacyPrivate:
		return true
	}
	return false
}

type VideoStatus string

const (
	VideoStatusDraft      VideoStatus = "draft"
	VideoStatusScheduled  VideoStatus = "scheduled"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusPublished  VideoStatus = "published"
)

func (s VideoStatus) Valid() bool {
	switch s {
	case VideoStatusDraft, VideoStatusScheduled, VideoStatusProcessing, VideoStatusPublished:
		return true
	}
	return false
}

// Video is a published or pending upload. Views, Likes, Dislikes and Comments
// are derived counters owned by the store.
type Video struct {
	ID              string      `json:"id"`
	OwnerID         string      `json:"ownerId"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	VideoURL        string      `json:"videoUrl"`
	ThumbnailURL    string      `json:"thumbnailUrl,omitempty"`
	DurationSeconds int         `json:"durationSeconds"`
	CategoryID      string      `json:"categoryId,omitempty"`
	Tags            []string    `json:"tags"`
	Privacy         Privacy     `json:"privacy"`
	Status          VideoStatus `json:"status"`
	Views           int64       `json:"views"`
	Likes           int64       `json:"likes"`
	Dislikes        int64       `json:"dislikes"`
	Comments        int64       `json:"comments"`
	AlgorithmScore  float64     `json:"algorithmScore"`
	EngagementRate  float64     `json:"engagementRate"`
	ScheduledAt     *time.Time  `json:"scheduledAt,omitempty"`
	PublishedAt     *time.Time  `json:"publishedAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Listed reports whether the video may appear in feeds and listings.
func (v Video) Listed() bool {
	return v.Privacy == PrivacyPublic && v.Status == VideoStatusPublished
}

// ViewableBy reports whether userID may open the video directly.
func (v Video) ViewableBy(userID string) bool {
	if v.OwnerID == userID && userID != "" {
		return true
	}
	if v.Status != VideoStatusPublished {
		return false
	}
	return v.Privacy != PrivacyPrivate
}

type Comment struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	AuthorID  string    `json:"authorId"`
	ParentID  string    `json:"parentId,omitempty"`
	Content   string    `json:"content"`
	Likes     int64     `json:"likes"`
	Dislikes  int64     `json:"dislikes"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ReactionType string

const (
	ReactionLike    ReactionType = "like"
	ReactionDislike ReactionType = "dislike"
)

func (t ReactionType) Valid() bool {
	return t == ReactionLike || t == ReactionDislike
}

// ReactionState is one user's current reaction to one target.
type ReactionState string

const (
	ReactionStateNone     ReactionState = "none"
	ReactionStateLiked    ReactionState = "liked"
	ReactionStateDisliked ReactionState = "disliked"
)

// StateOf maps a stored reaction type to the state it represents.
func StateOf(t ReactionType) ReactionState {
	switch t {
	case ReactionLike:
		return ReactionStateLiked
	case ReactionDislike:
		return ReactionStateDisliked
	}
	return ReactionStateNone
}

type TargetKind string

const (
	TargetVideo   TargetKind = "video"
	TargetComment TargetKind = "comment"
)

// Target identifies the video or comment a reaction applies to.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

func VideoTarget(id string) Target   { return Target{Kind: TargetVideo, ID: id} }
func CommentTarget(id string) Target { return Target{Kind: TargetComment, ID: id} }

func (t Target) String() string {
	return fmt.Sprintf("%s:%s", t.Kind, t.ID)
}

func (t Target) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("target id is required")
	}
	if t.Kind != TargetVideo && t.Kind != TargetComment {
		return fmt.Errorf("unsupported target kind %q", t.Kind)
	}
	return nil
}

// Reaction has exactly one of VideoID and CommentID set.
type Reaction struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	VideoID   string       `json:"videoId,omitempty"`
	CommentID string       `json:"commentId,omitempty"`
	Type      ReactionType `json:"type"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (r Reaction) Target() Target {
	if r.CommentID != "" {
		return CommentTarget(r.CommentID)
	}
	return VideoTarget(r.VideoID)
}

type Subscription struct {
	ID           string    `json:"id"`
	SubscriberID string    `json:"subscriberId"`
	ChannelID    string    `json:"channelId"`
	CreatedAt    time.Time `json:"createdAt"`
}

type NotificationKind string

const (
	NotificationComment      NotificationKind = "comment"
	NotificationReply        NotificationKind = "reply"
	NotificationSubscription NotificationKind = "subscription"
	NotificationNewVideo     NotificationKind = "new_video"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	ActorID   string           `json:"actorId,omitempty"`
	Kind      NotificationKind `json:"kind"`
	VideoID   string           `json:"videoId,omitempty"`
	CommentID string           `json:"commentId,omitempty"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

type Playlist struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Privacy     Privacy   `json:"privacy"`
	VideoIDs    []string  `json:"videoIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Contains reports whether the playlist already lists videoID.
func (p Playlist) Contains(videoID string) bool {
	for _, id := range p.VideoIDs {
		if id == videoID {
			return true
		}
	}
	return false
}

type VideoProgress struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	VideoID         string    `json:"videoId"`
	PositionSeconds float64   `json:"positionSeconds"`
	DurationSeconds float64   `json:"durationSeconds"`
	Completed       bool      `json:"completed"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}
