package storage

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"vidshare/internal/models"
	"vidshare/internal/ranking"
)

// errNoChanges aborts a mutation that found nothing to write.
var errNoChanges = errors.New("no changes")

// increment and decrement are the only code paths that touch derived
// counters. Decrements never go below zero.
func increment(counter *int64) {
	*counter++
}

func decrement(counter *int64) {
	decrementBy(counter, 1)
}

func decrementBy(counter *int64, n int64) {
	*counter -= n
	if *counter < 0 {
		*counter = 0
	}
}

// refreshVideo re-derives the engagement rate and algorithm score after any
// counter on v changed.
func refreshVideo(model ranking.ScoreModel, v *models.Video, now time.Time) {
	v.EngagementRate = ranking.EngagementRate(*v)
	v.AlgorithmScore = model.Score(*v)
	v.UpdatedAt = now
}

// CounterDrift is one derived counter that disagrees with its detail rows.
type CounterDrift struct {
	Counter string `json:"counter"`
	ID      string `json:"id"`
	Stored  int64  `json:"stored"`
	Actual  int64  `json:"actual"`
}

type CounterReport struct {
	CheckedAt time.Time      `json:"checkedAt"`
	Drifts    []CounterDrift `json:"drifts"`
}

func (r CounterReport) Clean() bool {
	return len(r.Drifts) == 0
}

// ByCounter groups the number of drifted rows per counter name.
func (r CounterReport) ByCounter() map[string]int {
	out := make(map[string]int)
	for _, d := range r.Drifts {
		out[d.Counter]++
	}
	return out
}

type videoCounts struct{ likes, dislikes, comments int64 }
type commentCounts struct{ likes, dislikes int64 }
type userCounts struct{ subscribers, videos, views int64 }

type expectedCounts struct {
	videos   map[string]videoCounts
	comments map[string]commentCounts
	users    map[string]userCounts
}

// countDetailRows derives every counter from scratch.
func countDetailRows(data *dataset) expectedCounts {
	exp := expectedCounts{
		videos:   make(map[string]videoCounts, len(data.Videos)),
		comments: make(map[string]commentCounts, len(data.Comments)),
		users:    make(map[string]userCounts, len(data.Users)),
	}
	for _, r := range data.Reactions {
		switch {
		case r.CommentID != "":
			c := exp.comments[r.CommentID]
			if r.Type == models.ReactionLike {
				c.likes++
			} else {
				c.dislikes++
			}
			exp.comments[r.CommentID] = c
		case r.VideoID != "":
			v := exp.videos[r.VideoID]
			if r.Type == models.ReactionLike {
				v.likes++
			} else {
				v.dislikes++
			}
			exp.videos[r.VideoID] = v
		}
	}
	for _, c := range data.Comments {
		v := exp.videos[c.VideoID]
		v.comments++
		exp.videos[c.VideoID] = v
	}
	for _, sub := range data.Subscriptions {
		u := exp.users[sub.ChannelID]
		u.subscribers++
		exp.users[sub.ChannelID] = u
	}
	for _, v := range data.Videos {
		u := exp.users[v.OwnerID]
		u.videos++
		u.views += v.Views
		exp.users[v.OwnerID] = u
	}
	return exp
}

func auditDataset(data *dataset, now time.Time) CounterReport {
	exp := countDetailRows(data)
	report := CounterReport{CheckedAt: now}
	check := func(counter, id string, stored, actual int64) {
		if stored != actual {
			report.Drifts = append(report.Drifts, CounterDrift{Counter: counter, ID: id, Stored: stored, Actual: actual})
		}
	}
	for id, v := range data.Videos {
		want := exp.videos[id]
		check("video.likes", id, v.Likes, want.likes)
		check("video.dislikes", id, v.Dislikes, want.dislikes)
		check("video.comments", id, v.Comments, want.comments)
	}
	for id, c := range data.Comments {
		want := exp.comments[id]
		check("comment.likes", id, c.Likes, want.likes)
		check("comment.dislikes", id, c.Dislikes, want.dislikes)
	}
	for id, u := range data.Users {
		want := exp.users[id]
		check("user.subscriberCount", id, u.SubscriberCount, want.subscribers)
		check("user.videoCount", id, u.VideoCount, want.videos)
		check("user.totalViews", id, u.TotalViews, want.views)
	}
	slices.SortFunc(report.Drifts, func(a, b CounterDrift) int {
		if c := cmp.Compare(a.Counter, b.Counter); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return report
}

// recomputeCounters overwrites every derived counter with its true value.
func recomputeCounters(tx *Tx) {
	exp := countDetailRows(tx.dataset)
	for id, v := range tx.Videos {
		want := exp.videos[id]
		if v.Likes != want.likes || v.Dislikes != want.dislikes || v.Comments != want.comments {
			v.Likes, v.Dislikes, v.Comments = want.likes, want.dislikes, want.comments
			refreshVideo(tx.model, &v, tx.now)
			tx.Videos.Put(id, v)
		}
	}
	for id, c := range tx.Comments {
		want := exp.comments[id]
		if c.Likes != want.likes || c.Dislikes != want.dislikes {
			c.Likes, c.Dislikes = want.likes, want.dislikes
			tx.Comments.Put(id, c)
		}
	}
	for id, u := range tx.Users {
		want := exp.users[id]
		if u.SubscriberCount != want.subscribers || u.VideoCount != want.videos || u.TotalViews != want.views {
			u.SubscriberCount, u.VideoCount, u.TotalViews = want.subscribers, want.videos, want.views
			tx.Users.Put(id, u)
		}
	}
}

// AuditCounters compares every derived counter with its detail rows without
// changing anything.
func (s *Storage) AuditCounters() CounterReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return auditDataset(&s.data, s.now().UTC())
}

// RepairCounters rewrites drifted counters and returns what it found. A clean
// store is not rewritten.
func (s *Storage) RepairCounters() (CounterReport, error) {
	var report CounterReport
	err := s.mutate("counters.repair", func(tx *Tx) error {
		report = auditDataset(tx.dataset, tx.now)
		if report.Clean() {
			return errNoChanges
		}
		recomputeCounters(tx)
		return nil
	})
	if errors.Is(err, errNoChanges) {
		return report, nil
	}
	for counter, n := range report.ByCounter() {
		s.metrics.CounterDrift(counter, n)
	}
	return report, err
}
