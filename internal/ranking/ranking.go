// Package ranking orders discovery feeds. Fair mode mixes the stored
// algorithm score and engagement with a random draw so low-traction videos
// still surface; trending mode is a fixed engagement formula.
package ranking

import (
	"cmp"
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"vidshare/internal/models"
	"vidshare/internal/observability/metrics"
)

type Mode string

const (
	ModeFair     Mode = "fair"
	ModeTrending Mode = "trending"
)

// ParseMode resolves a query value into a Mode, defaulting to fair.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(ModeFair):
		return ModeFair, nil
	case string(ModeTrending):
		return ModeTrending, nil
	default:
		return "", fmt.Errorf("unknown ranking mode %q", value)
	}
}

// Weights are the coefficients of the fair score
// w1*algorithmScore + w2*engagementRate + w3*U[0,1).
type Weights struct {
	Algorithm  float64 `koanf:"algorithm" validate:"gte=0"`
	Engagement float64 `koanf:"engagement" validate:"gte=0"`
	Random     float64 `koanf:"random" validate:"gte=0"`
}

func DefaultWeights() Weights {
	return Weights{Algorithm: 1.0, Engagement: 100, Random: 150}
}

type Ranked struct {
	Video models.Video `json:"video"`
	Score float64      `json:"score"`
}

type Option func(*Ranker)

func WithWeights(w Weights) Option {
	return func(r *Ranker) {
		r.weights = w
	}
}

// WithRandSource replaces the random source used by fair ranking.
func WithRandSource(src rand.Source) Option {
	return func(r *Ranker) {
		if src != nil {
			r.rng = rand.New(src)
		}
	}
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(r *Ranker) {
		r.recorder = recorder
	}
}

// Ranker is safe for concurrent use.
type Ranker struct {
	weights  Weights
	recorder *metrics.Recorder

	mu  sync.Mutex
	rng *rand.Rand
}

func New(opts ...Option) *Ranker {
	seed := uint64(time.Now().UnixNano())
	r := &Ranker{
		weights: DefaultWeights(),
		rng:     rand.New(rand.NewPCG(seed, rand.Uint64())),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.recorder == nil {
		r.recorder = metrics.Default()
	}
	return r
}

// Rank scores every public, published video in videos and returns them in
// descending score order. Fair mode draws fresh randomness on every call.
func (r *Ranker) Rank(videos []models.Video, mode Mode) []Ranked {
	ranked := make([]Ranked, 0, len(videos))
	switch mode {
	case ModeTrending:
		for _, v := range videos {
			if v.Listed() {
				ranked = append(ranked, Ranked{Video: v, Score: TrendingScore(v)})
			}
		}
	default:
		mode = ModeFair
		r.mu.Lock()
		for _, v := range videos {
			if !v.Listed() {
				continue
			}
			score := r.weights.Algorithm*v.AlgorithmScore +
				r.weights.Engagement*EngagementRate(v) +
				r.weights.Random*r.rng.Float64()
			ranked = append(ranked, Ranked{Video: v, Score: score})
		}
		r.mu.Unlock()
	}
	slices.SortFunc(ranked, compareRanked)
	r.recorder.FeedRanked(string(mode))
	return ranked
}

// Feed yields the ranked videos in order; iteration may stop early.
func (r *Ranker) Feed(videos []models.Video, mode Mode) iter.Seq[models.Video] {
	ranked := r.Rank(videos, mode)
	return func(yield func(models.Video) bool) {
		for _, item := range ranked {
			if !yield(item.Video) {
				return
			}
		}
	}
}

func compareRanked(a, b Ranked) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := comparePublished(a.Video.PublishedAt, b.Video.PublishedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Video.ID, b.Video.ID)
}

// comparePublished orders newer first; missing timestamps sort last.
func comparePublished(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return b.Compare(*a)
}
