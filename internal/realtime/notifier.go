package realtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"vidshare/internal/models"
	"vidshare/internal/observability/logging"
)

const (
	defaultPublishTimeout  = 2 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
)

type NotifierConfig struct {
	Logger          *slog.Logger
	PublishTimeout  time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Notifier routes events to rooms. With a bus it publishes there and relies
// on Run to deliver locally; when the bus is missing, failing or tripped it
// broadcasts straight to the local hub.
type Notifier struct {
	hub     *Hub
	bus     Bus
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
	timeout time.Duration
}

func NewNotifier(hub *Hub, bus Bus, cfg NotifierConfig) *Notifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaultBreakerCooldown
	}
	logger = logging.WithComponent(logger, "realtime")
	threshold := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "realtime-bus",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Notifier{
		hub:     hub,
		bus:     bus,
		breaker: breaker,
		logger:  logger,
		timeout: cfg.PublishTimeout,
	}
}

// NotifyNewComment is called by storage after a comment is durably created.
func (n *Notifier) NotifyNewComment(comment models.Comment, author models.User) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	n.Publish(ctx, NewCommentCreated(comment, author))
}

// Publish delivers event to the room named by event.VideoID.
func (n *Notifier) Publish(ctx context.Context, event Event) {
	if event.VideoID == "" {
		return
	}
	if n.bus == nil {
		n.hub.Broadcast(ctx, event.VideoID, event)
		return
	}
	_, err := n.breaker.Execute(func() (struct{}, error) {
		pubCtx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		return struct{}{}, n.bus.Publish(pubCtx, event)
	})
	if err == nil {
		return
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		n.logger.Debug("realtime bus unavailable, delivering locally", "room", event.VideoID, "type", event.Type)
	} else {
		n.logger.Warn("realtime bus publish failed, delivering locally", "room", event.VideoID, "type", event.Type, "error", err)
	}
	n.hub.Broadcast(ctx, event.VideoID, event)
}

// BreakerState reports the bus circuit breaker state.
func (n *Notifier) BreakerState() gobreaker.State {
	return n.breaker.State()
}

// Ping fails while the bus breaker is open.
func (n *Notifier) Ping(context.Context) error {
	if n.bus == nil {
		return nil
	}
	if n.breaker.State() == gobreaker.StateOpen {
		return errors.New("realtime bus circuit open")
	}
	return nil
}

// Run relays bus events into the local hub until ctx is done. Without a bus it
// just waits.
func (n *Notifier) Run(ctx context.Context) error {
	if n.bus == nil {
		<-ctx.Done()
		return nil
	}
	sub, err := n.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()
	n.logger.Info("realtime relay started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				return errors.New("realtime bus subscription closed")
			}
			n.hub.Broadcast(ctx, event.VideoID, event)
		}
	}
}
