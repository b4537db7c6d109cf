package realtime

import (
	"time"

	"vidshare/internal/models"
)

// EventType enumerates the events pushed to a video's room.
type EventType string

const (
	EventCommentCreated  EventType = "comment.created"
	EventCommentDeleted  EventType = "comment.deleted"
	EventReactionUpdated EventType = "reaction.updated"
)

// Event is the wire representation shared by the bus and the websocket
// frames. VideoID names the room the event belongs to.
type Event struct {
	Type       EventType       `json:"type"`
	VideoID    string          `json:"videoId"`
	Comment    *models.Comment `json:"comment,omitempty"`
	Author     *models.User    `json:"author,omitempty"`
	CommentIDs []string        `json:"commentIds,omitempty"`
	Reaction   *ReactionCounts `json:"reaction,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// ReactionCounts carries the counters of the target after a toggle.
type ReactionCounts struct {
	Target   models.Target `json:"target"`
	Likes    int64         `json:"likes"`
	Dislikes int64         `json:"dislikes"`
}

func NewCommentCreated(comment models.Comment, author models.User) Event {
	public := author.Public()
	return Event{
		Type:       EventCommentCreated,
		VideoID:    comment.VideoID,
		Comment:    &comment,
		Author:     &public,
		OccurredAt: time.Now().UTC(),
	}
}

func NewCommentDeleted(videoID string, commentIDs []string) Event {
	return Event{
		Type:       EventCommentDeleted,
		VideoID:    videoID,
		CommentIDs: commentIDs,
		OccurredAt: time.Now().UTC(),
	}
}

func NewReactionUpdated(videoID string, target models.Target, likes, dislikes int64) Event {
	return Event{
		Type:    EventReactionUpdated,
		VideoID: videoID,
		Reaction: &ReactionCounts{
			Target:   target,
			Likes:    likes,
			Dislikes: dislikes,
		},
		OccurredAt: time.Now().UTC(),
	}
}

// frame is one JSON text message on the websocket in either direction.
type frame struct {
	Type    string `json:"type"`
	VideoID string `json:"videoId,omitempty"`
	Error   string `json:"error,omitempty"`
	Event   *Event `json:"event,omitempty"`
}

const (
	frameJoin  = "join"
	frameLeave = "leave"
	framePing  = "ping"
	framePong  = "pong"
	frameAck   = "ack"
	frameError = "error"
	frameEvent = "event"
)
