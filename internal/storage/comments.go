package storage

import (
	"cmp"
	"slices"
	"unicode/utf8"

	"vidshare/internal/models"
)

const maxCommentLength = 2000

func validateCommentContent(content string) (string, error) {
	trimmed := cleanText(content)
	if trimmed == "" {
		return "", invalidf("comment content is required")
	}
	if utf8.RuneCountInString(trimmed) > maxCommentLength {
		return "", invalidf("comment must be at most %d characters", maxCommentLength)
	}
	return trimmed, nil
}

// CreateComment adds a comment, or a reply when parentID is set, to a video
// the author can see. The video's comment counter moves in the same step and
// the comment notifier runs once the write is durable.
func (s *Storage) CreateComment(authorID, videoID, parentID, content string) (models.Comment, error) {
	body, err := validateCommentContent(content)
	if err != nil {
		return models.Comment{}, err
	}

	var created models.Comment
	err = s.mutate("comment.create", func(tx *Tx) error {
		author, err := tx.activeUser(authorID)
		if err != nil {
			return err
		}
		video, ok := tx.Videos.Get(videoID)
		if !ok || !canView(tx.dataset, author.ID, video) {
			return notFound("video", videoID)
		}
		var parent models.Comment
		if parentID != "" {
			parent, ok = tx.Comments.Get(parentID)
			if !ok {
				return notFound("comment", parentID)
			}
			if parent.VideoID != videoID {
				return invalidf("parent comment %s belongs to another video", parentID)
			}
		}

		created = models.Comment{
			ID:        newID(),
			VideoID:   videoID,
			AuthorID:  author.ID,
			ParentID:  parentID,
			Content:   body,
			CreatedAt: tx.now,
			UpdatedAt: tx.now,
		}
		tx.Comments.Put(created.ID, created)

		video = copyVideo(video)
		increment(&video.Comments)
		refreshVideo(tx.model, &video, tx.now)
		tx.Videos.Put(video.ID, video)

		tx.notify(models.Notification{
			UserID:    video.OwnerID,
			ActorID:   author.ID,
			Kind:      models.NotificationComment,
			VideoID:   video.ID,
			CommentID: created.ID,
			Message:   author.DisplayName + " commented on " + video.Title,
		})
		if parentID != "" && parent.AuthorID != video.OwnerID {
			tx.notify(models.Notification{
				UserID:    parent.AuthorID,
				ActorID:   author.ID,
				Kind:      models.NotificationReply,
				VideoID:   video.ID,
				CommentID: created.ID,
				Message:   author.DisplayName + " replied to your comment",
			})
		}

		if s.notifier != nil {
			comment := created
			tx.onCommit(func() { s.notifier.NotifyNewComment(comment, author.Public()) })
		}
		return nil
	})
	return created, err
}

func (s *Storage) GetComment(id string) (models.Comment, bool) {
	return getRow(s, func(d *dataset) Table[models.Comment] { return d.Comments }, id)
}

func (s *Storage) QueryComments(pred func(models.Comment) bool) []models.Comment {
	return queryRows(s, func(d *dataset) Table[models.Comment] { return d.Comments }, pred)
}

// ListComments returns the video's comments, oldest first.
func (s *Storage) ListComments(videoID string) []models.Comment {
	comments := s.QueryComments(func(c models.Comment) bool { return c.VideoID == videoID })
	slices.SortFunc(comments, func(a, b models.Comment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return comments
}

// UpdateComment edits the body. Only the author may edit.
func (s *Storage) UpdateComment(actorID, id, content string) (models.Comment, error) {
	body, err := validateCommentContent(content)
	if err != nil {
		return models.Comment{}, err
	}
	var updated models.Comment
	err = s.mutate("comment.update", func(tx *Tx) error {
		comment, ok := tx.Comments.Get(id)
		if !ok {
			return notFound("comment", id)
		}
		if comment.AuthorID != actorID {
			return unauthorizedf("user %s did not write comment %s", actorID, id)
		}
		comment.Content = body
		comment.Edited = true
		comment.UpdatedAt = tx.now
		tx.Comments.Put(id, comment)
		updated = comment
		return nil
	})
	return updated, err
}

// DeleteComment removes a comment and its whole reply thread. The author, the
// video owner or an admin may delete. Every removed comment decrements the
// video counter once and takes its reactions with it. The ids of all removed
// comments are returned.
func (s *Storage) DeleteComment(actorID, id string) ([]string, error) {
	var removed []string
	err := s.mutate("comment.delete", func(tx *Tx) error {
		actor, err := tx.user(actorID)
		if err != nil {
			return err
		}
		comment, ok := tx.Comments.Get(id)
		if !ok {
			return notFound("comment", id)
		}
		video, videoOK := tx.Videos.Get(comment.VideoID)
		allowed := comment.AuthorID == actor.ID || actor.IsAdmin || (videoOK && video.OwnerID == actor.ID)
		if !allowed {
			return unauthorizedf("user %s cannot delete comment %s", actor.ID, id)
		}

		removed = collectThread(tx.Comments, id)
		doomed := make(map[string]struct{}, len(removed))
		for _, commentID := range removed {
			doomed[commentID] = struct{}{}
			tx.Comments.Delete(commentID)
		}
		for reactionID, r := range tx.Reactions {
			if _, hit := doomed[r.CommentID]; hit && r.CommentID != "" {
				tx.Reactions.Delete(reactionID)
			}
		}
		for notificationID, n := range tx.Notifications {
			if _, hit := doomed[n.CommentID]; hit && n.CommentID != "" {
				tx.Notifications.Delete(notificationID)
			}
		}
		if videoOK {
			video = copyVideo(video)
			for range removed {
				decrement(&video.Comments)
			}
			refreshVideo(tx.model, &video, tx.now)
			tx.Videos.Put(video.ID, video)
		}
		return nil
	})
	return removed, err
}

// collectThread returns rootID followed by every transitive reply.
func collectThread(comments Table[models.Comment], rootID string) []string {
	children := make(map[string][]string)
	for id, c := range comments {
		if c.ParentID != "" {
			children[c.ParentID] = append(children[c.ParentID], id)
		}
	}
	thread := []string{rootID}
	for i := 0; i < len(thread); i++ {
		kids := children[thread[i]]
		slices.Sort(kids)
		thread = append(thread, kids...)
	}
	return thread
}
