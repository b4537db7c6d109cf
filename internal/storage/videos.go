package storage

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"vidshare/internal/models"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 5000
	maxTags              = 15
	maxTagLength         = 30
)

type CreateVideoParams struct {
	OwnerID         string
	Title           string
	Description     string
	VideoURL        string
	ThumbnailURL    string
	DurationSeconds int
	CategoryID      string
	Tags            []string
	Privacy         models.Privacy
	Status          models.VideoStatus
	ScheduledAt     *time.Time
}

// VideoUpdate holds the editable fields; nil leaves a field unchanged.
type VideoUpdate struct {
	Title        *string
	Description  *string
	ThumbnailURL *string
	CategoryID   *string
	Tags         *[]string
	Privacy      *models.Privacy
	Status       *models.VideoStatus
	ScheduledAt  *time.Time
}

// VideoFilter narrows ListVideos. ViewerID decides what non-public videos
// are visible: owners see all of their own uploads.
type VideoFilter struct {
	ViewerID   string
	OwnerID    string
	CategoryID string
	Tag        string
	Query      string
}

var statusTransitions = map[models.VideoStatus][]models.VideoStatus{
	models.VideoStatusDraft:      {models.VideoStatusScheduled, models.VideoStatusPublished},
	models.VideoStatusScheduled:  {models.VideoStatusPublished, models.VideoStatusDraft},
	models.VideoStatusProcessing: {models.VideoStatusPublished, models.VideoStatusDraft},
}

func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
		if normalized == "" || slices.Contains(out, normalized) {
			continue
		}
		if utf8.RuneCountInString(normalized) > maxTagLength {
			return nil, invalidf("tag %q exceeds %d characters", normalized, maxTagLength)
		}
		out = append(out, normalized)
	}
	if len(out) > maxTags {
		return nil, invalidf("at most %d tags are allowed", maxTags)
	}
	return out, nil
}

func validateTitle(title string) (string, error) {
	trimmed := cleanText(title)
	if trimmed == "" {
		return "", invalidf("title is required")
	}
	if utf8.RuneCountInString(trimmed) > maxTitleLength {
		return "", invalidf("title must be at most %d characters", maxTitleLength)
	}
	return trimmed, nil
}

func validateDescription(description string) (string, error) {
	trimmed := cleanText(description)
	if utf8.RuneCountInString(trimmed) > maxDescriptionLength {
		return "", invalidf("description must be at most %d characters", maxDescriptionLength)
	}
	return trimmed, nil
}

func (tx *Tx) requireCategory(id string) error {
	if id == "" {
		return nil
	}
	if _, ok := tx.Categories.Get(id); !ok {
		return notFound("category", id)
	}
	return nil
}

// CreateVideo registers an upload for an active user. New videos start at the
// baseline algorithm score.
func (s *Storage) CreateVideo(params CreateVideoParams) (models.Video, error) {
	title, err := validateTitle(params.Title)
	if err != nil {
		return models.Video{}, err
	}
	description, err := validateDescription(params.Description)
	if err != nil {
		return models.Video{}, err
	}
	videoURL := strings.TrimSpace(params.VideoURL)
	if videoURL == "" {
		return models.Video{}, invalidf("videoUrl is required")
	}
	if params.DurationSeconds < 0 {
		return models.Video{}, invalidf("durationSeconds cannot be negative")
	}
	tags, err := normalizeTags(params.Tags)
	if err != nil {
		return models.Video{}, err
	}
	privacy := params.Privacy
	if privacy == "" {
		privacy = models.PrivacyPublic
	}
	if !privacy.Valid() {
		return models.Video{}, invalidf("privacy %q is not supported", privacy)
	}
	status := params.Status
	if status == "" {
		status = models.VideoStatusPublished
	}
	if !status.Valid() {
		return models.Video{}, invalidf("status %q is not supported", status)
	}

	var created models.Video
	err = s.mutate("video.create", func(tx *Tx) error {
		owner, err := tx.activeUser(params.OwnerID)
		if err != nil {
			return err
		}
		if err := tx.requireCategory(params.CategoryID); err != nil {
			return err
		}
		video := models.Video{
			ID:              newID(),
			OwnerID:         owner.ID,
			Title:           title,
			Description:     description,
			VideoURL:        videoURL,
			ThumbnailURL:    strings.TrimSpace(params.ThumbnailURL),
			DurationSeconds: params.DurationSeconds,
			CategoryID:      params.CategoryID,
			Tags:            tags,
			Privacy:         privacy,
			Status:          status,
			CreatedAt:       tx.now,
		}
		if err := tx.applyStatus(&video, status, params.ScheduledAt); err != nil {
			return err
		}
		refreshVideo(tx.model, &video, tx.now)
		increment(&owner.VideoCount)
		tx.Users.Put(owner.ID, owner)
		tx.Videos.Put(video.ID, video)
		if video.Status == models.VideoStatusPublished {
			tx.notifySubscribers(video, owner)
		}
		created = copyVideo(video)
		return nil
	})
	return created, err
}

// applyStatus moves v into status, checking the schedule and stamping
// publishedAt on first publish.
func (tx *Tx) applyStatus(v *models.Video, status models.VideoStatus, scheduledAt *time.Time) error {
	switch status {
	case models.VideoStatusScheduled:
		when := scheduledAt
		if when == nil {
			when = v.ScheduledAt
		}
		if when == nil || !when.After(tx.now) {
			return invalidf("scheduled videos need a scheduledAt in the future")
		}
		at := when.UTC()
		v.ScheduledAt = &at
	case models.VideoStatusPublished:
		if v.PublishedAt == nil {
			at := tx.now
			v.PublishedAt = &at
		}
		v.ScheduledAt = nil
	default:
		if scheduledAt != nil {
			at := scheduledAt.UTC()
			v.ScheduledAt = &at
		}
	}
	v.Status = status
	return nil
}

func (s *Storage) GetVideo(id string) (models.Video, bool) {
	v, ok := getRow(s, func(d *dataset) Table[models.Video] { return d.Videos }, id)
	return copyVideo(v), ok
}

func (s *Storage) QueryVideos(pred func(models.Video) bool) []models.Video {
	rows := queryRows(s, func(d *dataset) Table[models.Video] { return d.Videos }, pred)
	for i := range rows {
		rows[i] = copyVideo(rows[i])
	}
	return rows
}

// VideoForViewer returns the video if viewerID may open it. Videos the viewer
// cannot see are reported as missing.
func (s *Storage) VideoForViewer(viewerID, id string) (models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.Videos.Get(id)
	if !ok || !canView(&s.data, viewerID, v) {
		return models.Video{}, notFound("video", id)
	}
	return copyVideo(v), nil
}

func canView(data *dataset, viewerID string, v models.Video) bool {
	if v.ViewableBy(viewerID) {
		return true
	}
	viewer, ok := data.Users.Get(viewerID)
	return ok && viewer.IsAdmin
}

// ListVideos returns the videos visible to filter.ViewerID, newest first.
// Other people's videos appear only when public and published.
func (s *Storage) ListVideos(filter VideoFilter) []models.Video {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	tag := strings.ToLower(strings.TrimSpace(filter.Tag))
	videos := s.QueryVideos(func(v models.Video) bool {
		if filter.OwnerID != "" && v.OwnerID != filter.OwnerID {
			return false
		}
		if !v.Listed() && (filter.ViewerID == "" || v.OwnerID != filter.ViewerID) {
			return false
		}
		if filter.CategoryID != "" && v.CategoryID != filter.CategoryID {
			return false
		}
		if tag != "" && !slices.Contains(v.Tags, tag) {
			return false
		}
		if query != "" && !strings.Contains(strings.ToLower(v.Title), query) && !strings.Contains(strings.ToLower(v.Description), query) {
			return false
		}
		return true
	})
	slices.SortFunc(videos, func(a, b models.Video) int {
		if c := sortTime(b).Compare(sortTime(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return videos
}

func sortTime(v models.Video) time.Time {
	if v.PublishedAt != nil {
		return *v.PublishedAt
	}
	return v.CreatedAt
}

// UpdateVideo edits metadata and status. Only the owner or an admin may edit.
func (s *Storage) UpdateVideo(actorID, id string, update VideoUpdate) (models.Video, error) {
	var updated models.Video
	err := s.mutate("video.update", func(tx *Tx) error {
		video, _, err := tx.ownedVideo(actorID, id)
		if err != nil {
			return err
		}
		video = copyVideo(video)
		if update.Title != nil {
			title, err := validateTitle(*update.Title)
			if err != nil {
				return err
			}
			video.Title = title
		}
		if update.Description != nil {
			description, err := validateDescription(*update.Description)
			if err != nil {
				return err
			}
			video.Description = description
		}
		if update.ThumbnailURL != nil {
			video.ThumbnailURL = strings.TrimSpace(*update.ThumbnailURL)
		}
		if update.CategoryID != nil {
			if err := tx.requireCategory(*update.CategoryID); err != nil {
				return err
			}
			video.CategoryID = *update.CategoryID
		}
		if update.Tags != nil {
			tags, err := normalizeTags(*update.Tags)
			if err != nil {
				return err
			}
			video.Tags = tags
		}
		if update.Privacy != nil {
			if !update.Privacy.Valid() {
				return invalidf("privacy %q is not supported", *update.Privacy)
			}
			video.Privacy = *update.Privacy
		}
		firstPublish := false
		if update.Status != nil && *update.Status != video.Status {
			next := *update.Status
			if !slices.Contains(statusTransitions[video.Status], next) {
				return invalidf("cannot move video from %s to %s", video.Status, next)
			}
			firstPublish = next == models.VideoStatusPublished && video.PublishedAt == nil
			if err := tx.applyStatus(&video, next, update.ScheduledAt); err != nil {
				return err
			}
		} else if update.ScheduledAt != nil {
			if video.Status != models.VideoStatusScheduled {
				return invalidf("only scheduled videos accept scheduledAt")
			}
			if err := tx.applyStatus(&video, video.Status, update.ScheduledAt); err != nil {
				return err
			}
		}
		video.UpdatedAt = tx.now
		tx.Videos.Put(video.ID, video)
		if firstPublish {
			owner, err := tx.user(video.OwnerID)
			if err == nil {
				tx.notifySubscribers(video, owner)
			}
		}
		updated = copyVideo(video)
		return nil
	})
	return updated, err
}

// ownedVideo loads a video the actor may modify: the owner or an admin.
func (tx *Tx) ownedVideo(actorID, id string) (models.Video, models.User, error) {
	actor, err := tx.user(actorID)
	if err != nil {
		return models.Video{}, models.User{}, err
	}
	video, ok := tx.Videos.Get(id)
	if !ok {
		return models.Video{}, models.User{}, notFound("video", id)
	}
	if video.OwnerID != actor.ID && !actor.IsAdmin {
		return models.Video{}, models.User{}, unauthorizedf("user %s does not own video %s", actor.ID, id)
	}
	return video, actor, nil
}

// DeleteVideo removes the video together with its comments, every reaction on
// the video or its comments, playlist entries, progress and notifications.
func (s *Storage) DeleteVideo(actorID, id string) error {
	return s.mutate("video.delete", func(tx *Tx) error {
		video, _, err := tx.ownedVideo(actorID, id)
		if err != nil {
			return err
		}
		removedComments := make(map[string]struct{})
		for commentID, c := range tx.Comments {
			if c.VideoID == id {
				removedComments[commentID] = struct{}{}
				tx.Comments.Delete(commentID)
			}
		}
		for reactionID, r := range tx.Reactions {
			_, onComment := removedComments[r.CommentID]
			if r.VideoID == id || onComment {
				tx.Reactions.Delete(reactionID)
			}
		}
		for playlistID, p := range tx.Playlists {
			if p.Contains(id) {
				p.VideoIDs = slices.DeleteFunc(p.VideoIDs, func(v string) bool { return v == id })
				p.UpdatedAt = tx.now
				tx.Playlists.Put(playlistID, p)
			}
		}
		for progressID, p := range tx.Progress {
			if p.VideoID == id {
				tx.Progress.Delete(progressID)
			}
		}
		for notificationID, n := range tx.Notifications {
			if n.VideoID == id {
				tx.Notifications.Delete(notificationID)
			}
		}
		if owner, ok := tx.Users.Get(video.OwnerID); ok {
			decrement(&owner.VideoCount)
			decrementBy(&owner.TotalViews, video.Views)
			owner.UpdatedAt = tx.now
			tx.Users.Put(owner.ID, owner)
		}
		tx.Videos.Delete(id)
		return nil
	})
}

// RecordView counts one view of a video the viewer may open. viewerID may be
// empty for anonymous viewers.
func (s *Storage) RecordView(viewerID, id string) (models.Video, error) {
	var updated models.Video
	err := s.mutate("video.view", func(tx *Tx) error {
		video, ok := tx.Videos.Get(id)
		if !ok || !canView(tx.dataset, viewerID, video) {
			return notFound("video", id)
		}
		video = copyVideo(video)
		increment(&video.Views)
		refreshVideo(tx.model, &video, tx.now)
		tx.Videos.Put(video.ID, video)
		if owner, ok := tx.Users.Get(video.OwnerID); ok {
			increment(&owner.TotalViews)
			tx.Users.Put(owner.ID, owner)
		}
		updated = copyVideo(video)
		return nil
	})
	return updated, err
}

// PublishDueVideos publishes every scheduled video whose time has come.
func (s *Storage) PublishDueVideos(now time.Time) ([]models.Video, error) {
	var published []models.Video
	err := s.mutate("video.publish_due", func(tx *Tx) error {
		for id, video := range tx.Videos {
			if video.Status != models.VideoStatusScheduled || video.ScheduledAt == nil || video.ScheduledAt.After(now) {
				continue
			}
			video = copyVideo(video)
			at := now.UTC()
			video.PublishedAt = &at
			video.ScheduledAt = nil
			video.Status = models.VideoStatusPublished
			video.UpdatedAt = tx.now
			tx.Videos.Put(id, video)
			if owner, ok := tx.Users.Get(video.OwnerID); ok {
				tx.notifySubscribers(video, owner)
			}
			published = append(published, copyVideo(video))
		}
		if len(published) == 0 {
			return errNoChanges
		}
		return nil
	})
	if errors.Is(err, errNoChanges) {
		return nil, nil
	}
	slices.SortFunc(published, func(a, b models.Video) int { return cmp.Compare(a.ID, b.ID) })
	return published, err
}
