package storage

import (
	"vidshare/internal/models"
)

// ReactionResult is the target's counters and the user's state after a toggle.
type ReactionResult struct {
	Target   models.Target        `json:"target"`
	Likes    int64                `json:"likes"`
	Dislikes int64                `json:"dislikes"`
	State    models.ReactionState `json:"state"`
}

// nextReactionState applies one toggle action. Repeating the current
// reaction clears it; the opposite reaction replaces it.
func nextReactionState(current models.ReactionState, action models.ReactionType) models.ReactionState {
	wanted := models.StateOf(action)
	if current == wanted {
		return models.ReactionStateNone
	}
	return wanted
}

func reactionTypeFor(state models.ReactionState) models.ReactionType {
	if state == models.ReactionStateDisliked {
		return models.ReactionDislike
	}
	return models.ReactionLike
}

// reactionCounters points at the like and dislike counters of one target
// held in the transaction, and writes them back.
type reactionCounters struct {
	likes    *int64
	dislikes *int64
	commit   func()
}

func (tx *Tx) reactionTarget(viewerID string, target models.Target) (reactionCounters, error) {
	switch target.Kind {
	case models.TargetVideo:
		video, ok := tx.Videos.Get(target.ID)
		if !ok || !canView(tx.dataset, viewerID, video) {
			return reactionCounters{}, notFound("video", target.ID)
		}
		video = copyVideo(video)
		return reactionCounters{
			likes:    &video.Likes,
			dislikes: &video.Dislikes,
			commit: func() {
				refreshVideo(tx.model, &video, tx.now)
				tx.Videos.Put(video.ID, video)
			},
		}, nil
	case models.TargetComment:
		comment, ok := tx.Comments.Get(target.ID)
		if !ok {
			return reactionCounters{}, notFound("comment", target.ID)
		}
		if video, ok := tx.Videos.Get(comment.VideoID); !ok || !canView(tx.dataset, viewerID, video) {
			return reactionCounters{}, notFound("comment", target.ID)
		}
		return reactionCounters{
			likes:    &comment.Likes,
			dislikes: &comment.Dislikes,
			commit: func() {
				comment.UpdatedAt = tx.now
				tx.Comments.Put(comment.ID, comment)
			},
		}, nil
	}
	return reactionCounters{}, invalidf("unsupported target kind %q", target.Kind)
}

func (tx *Tx) findReaction(userID string, target models.Target) (models.Reaction, bool) {
	for _, r := range tx.Reactions {
		if r.UserID == userID && r.Target() == target {
			return r, true
		}
	}
	return models.Reaction{}, false
}

// ToggleReaction applies a like or dislike press by userID to target. The
// reaction row and both counters change in one atomic step:
//
//	none     + like    -> liked     (+1 like)
//	none     + dislike -> disliked  (+1 dislike)
//	liked    + like    -> none      (-1 like)
//	liked    + dislike -> disliked  (-1 like, +1 dislike)
//	disliked + dislike -> none      (-1 dislike)
//	disliked + like    -> liked     (-1 dislike, +1 like)
func (s *Storage) ToggleReaction(userID string, target models.Target, action models.ReactionType) (ReactionResult, error) {
	if err := target.Validate(); err != nil {
		return ReactionResult{}, invalidf("%v", err)
	}
	if !action.Valid() {
		return ReactionResult{}, invalidf("reaction type %q is not supported", action)
	}

	var result ReactionResult
	err := s.mutate("reaction.toggle", func(tx *Tx) error {
		user, err := tx.activeUser(userID)
		if err != nil {
			return err
		}
		counters, err := tx.reactionTarget(user.ID, target)
		if err != nil {
			return err
		}

		existing, found := tx.findReaction(user.ID, target)
		current := models.ReactionStateNone
		if found {
			current = models.StateOf(existing.Type)
		}
		next := nextReactionState(current, action)

		switch current {
		case models.ReactionStateLiked:
			decrement(counters.likes)
		case models.ReactionStateDisliked:
			decrement(counters.dislikes)
		}
		switch next {
		case models.ReactionStateLiked:
			increment(counters.likes)
		case models.ReactionStateDisliked:
			increment(counters.dislikes)
		}

		switch {
		case next == models.ReactionStateNone:
			tx.Reactions.Delete(existing.ID)
		case found:
			existing.Type = reactionTypeFor(next)
			existing.UpdatedAt = tx.now
			tx.Reactions.Put(existing.ID, existing)
		default:
			row := models.Reaction{
				ID:        newID(),
				UserID:    user.ID,
				Type:      reactionTypeFor(next),
				CreatedAt: tx.now,
				UpdatedAt: tx.now,
			}
			if target.Kind == models.TargetComment {
				row.CommentID = target.ID
			} else {
				row.VideoID = target.ID
			}
			tx.Reactions.Put(row.ID, row)
		}
		counters.commit()

		result = ReactionResult{
			Target:   target,
			Likes:    *counters.likes,
			Dislikes: *counters.dislikes,
			State:    next,
		}
		tx.onCommit(func() { s.metrics.ReactionTransition(string(current), string(next)) })
		return nil
	})
	return result, err
}

// ReactionState reports userID's current reaction to target.
func (s *Storage) ReactionState(userID string, target models.Target) models.ReactionState {
	state := models.ReactionStateNone
	s.View(func(tx *Tx) {
		if r, ok := tx.findReaction(userID, target); ok {
			state = models.StateOf(r.Type)
		}
	})
	return state
}

func (s *Storage) QueryReactions(pred func(models.Reaction) bool) []models.Reaction {
	return queryRows(s, func(d *dataset) Table[models.Reaction] { return d.Reactions }, pred)
}
