package storage

import (
	"context"
	"time"

	"vidshare/internal/models"
)

// Repository exposes the datastore operations required by API handlers,
// the realtime layer and the maintenance worker.
type Repository interface {
	Ping(ctx context.Context) error
	Close()

	Mutate(fn func(*Tx) error) error
	View(fn func(*Tx))
	Snapshot() Snapshot
	Restore(snapshot Snapshot) error
	AuditCounters() CounterReport
	RepairCounters() (CounterReport, error)

	CreateUser(params CreateUserParams) (models.User, error)
	AuthenticateUser(identifier, password string) (models.User, error)
	GetUser(id string) (models.User, bool)
	QueryUsers(pred func(models.User) bool) []models.User
	FindUserByUsername(username string) (models.User, bool)
	FindUserByEmail(email string) (models.User, bool)
	ListUsers() []models.User
	UpdateUser(actorID, id string, update UserUpdate) (models.User, error)
	SetUserBanned(actorID, id string, banned bool) (models.User, error)
	GrantAdmin(id string) (models.User, error)

	CreateVideo(params CreateVideoParams) (models.Video, error)
	GetVideo(id string) (models.Video, bool)
	QueryVideos(pred func(models.Video) bool) []models.Video
	VideoForViewer(viewerID, id string) (models.Video, error)
	ListVideos(filter VideoFilter) []models.Video
	UpdateVideo(actorID, id string, update VideoUpdate) (models.Video, error)
	DeleteVideo(actorID, id string) error
	RecordView(viewerID, id string) (models.Video, error)
	PublishDueVideos(now time.Time) ([]models.Video, error)

	CreateComment(authorID, videoID, parentID, content string) (models.Comment, error)
	GetComment(id string) (models.Comment, bool)
	QueryComments(pred func(models.Comment) bool) []models.Comment
	ListComments(videoID string) []models.Comment
	UpdateComment(actorID, id, content string) (models.Comment, error)
	DeleteComment(actorID, id string) ([]string, error)

	ToggleReaction(userID string, target models.Target, action models.ReactionType) (ReactionResult, error)
	ReactionState(userID string, target models.Target) models.ReactionState
	QueryReactions(pred func(models.Reaction) bool) []models.Reaction

	Subscribe(subscriberID, channelID string) (models.Subscription, error)
	Unsubscribe(subscriberID, channelID string) error
	IsSubscribed(subscriberID, channelID string) bool
	QuerySubscriptions(pred func(models.Subscription) bool) []models.Subscription
	ListSubscriptions(subscriberID string) []models.Subscription
	ListSubscribers(channelID string) []models.Subscription

	ListNotifications(userID string, unreadOnly bool) []models.Notification
	UnreadNotificationCount(userID string) int
	MarkNotificationRead(userID, id string) (models.Notification, error)
	MarkAllNotificationsRead(userID string) (int, error)

	CreatePlaylist(params CreatePlaylistParams) (models.Playlist, error)
	GetPlaylist(viewerID, id string) (models.Playlist, error)
	ListPlaylists(ownerID, viewerID string) []models.Playlist
	AddPlaylistVideo(actorID, playlistID, videoID string) (models.Playlist, error)
	RemovePlaylistVideo(actorID, playlistID, videoID string) (models.Playlist, error)
	DeletePlaylist(actorID, id string) error

	SaveProgress(userID, videoID string, positionSeconds, durationSeconds float64) (models.VideoProgress, error)
	GetProgress(userID, videoID string) (models.VideoProgress, bool)
	ListProgress(userID string) []models.VideoProgress

	ListCategories() []models.Category
	GetCategory(id string) (models.Category, bool)
	CreateCategory(actorID, name string) (models.Category, error)
}

var _ Repository = (*Storage)(nil)
