package storage

import (
	"cmp"
	"math"
	"slices"

	"vidshare/internal/models"
)

// completionRatio is the watched fraction at which a video counts as finished.
const completionRatio = 0.95

func progressID(userID, videoID string) string {
	return userID + ":" + videoID
}

// SaveProgress records how far userID has watched videoID, replacing any
// earlier position.
func (s *Storage) SaveProgress(userID, videoID string, positionSeconds, durationSeconds float64) (models.VideoProgress, error) {
	if math.IsNaN(positionSeconds) || math.IsNaN(durationSeconds) || positionSeconds < 0 || durationSeconds < 0 {
		return models.VideoProgress{}, invalidf("position and duration must be non-negative")
	}
	if durationSeconds > 0 && positionSeconds > durationSeconds {
		positionSeconds = durationSeconds
	}

	var saved models.VideoProgress
	err := s.mutate("progress.save", func(tx *Tx) error {
		user, err := tx.user(userID)
		if err != nil {
			return err
		}
		video, ok := tx.Videos.Get(videoID)
		if !ok || !canView(tx.dataset, user.ID, video) {
			return notFound("video", videoID)
		}
		saved = models.VideoProgress{
			ID:              progressID(user.ID, video.ID),
			UserID:          user.ID,
			VideoID:         video.ID,
			PositionSeconds: positionSeconds,
			DurationSeconds: durationSeconds,
			Completed:       durationSeconds > 0 && positionSeconds >= completionRatio*durationSeconds,
			UpdatedAt:       tx.now,
		}
		tx.Progress.Put(saved.ID, saved)
		return nil
	})
	return saved, err
}

func (s *Storage) GetProgress(userID, videoID string) (models.VideoProgress, bool) {
	return getRow(s, func(d *dataset) Table[models.VideoProgress] { return d.Progress }, progressID(userID, videoID))
}

// ListProgress returns the user's watch history, most recently watched first.
func (s *Storage) ListProgress(userID string) []models.VideoProgress {
	rows := queryRows(s, func(d *dataset) Table[models.VideoProgress] { return d.Progress }, func(p models.VideoProgress) bool {
		return p.UserID == userID
	})
	slices.SortFunc(rows, func(a, b models.VideoProgress) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return rows
}
