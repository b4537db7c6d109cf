package ranking

import (
	"math"

	"vidshare/internal/models"
)

// ScoreModel describes how a video's algorithm score evolves with engagement.
// The score starts at Baseline for a video with no signals, rises towards
// Baseline+Span along a saturating curve, and is clamped to [Min, Max].
type ScoreModel struct {
	Baseline       float64 `koanf:"baseline" validate:"gt=0"`
	Span           float64 `koanf:"span" validate:"gt=0"`
	Scale          float64 `koanf:"scale" validate:"gt=0"`
	Min            float64 `koanf:"min" validate:"gte=0"`
	Max            float64 `koanf:"max" validate:"gtfield=Min"`
	LikeWeight     float64 `koanf:"like_weight" validate:"gte=0"`
	CommentWeight  float64 `koanf:"comment_weight" validate:"gte=0"`
	ViewWeight     float64 `koanf:"view_weight" validate:"gte=0"`
	DislikePenalty float64 `koanf:"dislike_penalty" validate:"gte=0"`
}

// DefaultScoreModel returns the production scoring constants.
func DefaultScoreModel() ScoreModel {
	return ScoreModel{
		Baseline:       100,
		Span:           900,
		Scale:          250,
		Min:            10,
		Max:            1000,
		LikeWeight:     2,
		CommentWeight:  3,
		ViewWeight:     0.05,
		DislikePenalty: 1.5,
	}
}

// Score computes the bounded algorithm score for v. It never decreases when
// likes, comments or views grow.
func (m ScoreModel) Score(v models.Video) float64 {
	points := m.LikeWeight*float64(nonNegative(v.Likes)) +
		m.CommentWeight*float64(nonNegative(v.Comments)) +
		m.ViewWeight*float64(nonNegative(v.Views))
	score := m.Baseline
	if m.Scale > 0 {
		score += m.Span * (1 - math.Exp(-points/m.Scale))
	}
	penalty := m.DislikePenalty * float64(nonNegative(v.Dislikes))
	if limit := m.Baseline - m.Min; penalty > limit {
		penalty = math.Max(limit, 0)
	}
	score -= penalty
	return clamp(score, m.Min, m.Max)
}

// AlgorithmScore scores v with DefaultScoreModel.
func AlgorithmScore(v models.Video) float64 {
	return DefaultScoreModel().Score(v)
}

// EngagementRate is (likes+comments)/views, or 0 for an unwatched video.
func EngagementRate(v models.Video) float64 {
	views := nonNegative(v.Views)
	if views == 0 {
		return 0
	}
	return float64(nonNegative(v.Likes)+nonNegative(v.Comments)) / float64(views)
}

// TrendingScore is the deterministic engagement formula used by ModeTrending.
func TrendingScore(v models.Video) float64 {
	return 3*float64(nonNegative(v.Likes)) +
		5*float64(nonNegative(v.Comments)) +
		0.1*float64(nonNegative(v.Views)) -
		2*float64(nonNegative(v.Dislikes))
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
