package storage

import (
	"cmp"
	"slices"

	"vidshare/internal/models"
)

func (tx *Tx) findSubscription(subscriberID, channelID string) (models.Subscription, bool) {
	for _, sub := range tx.Subscriptions {
		if sub.SubscriberID == subscriberID && sub.ChannelID == channelID {
			return sub, true
		}
	}
	return models.Subscription{}, false
}

// Subscribe makes subscriberID follow channelID and bumps the channel's
// subscriber count in the same step.
func (s *Storage) Subscribe(subscriberID, channelID string) (models.Subscription, error) {
	if subscriberID == channelID {
		return models.Subscription{}, invalidf("users cannot subscribe to themselves")
	}
	var created models.Subscription
	err := s.mutate("subscription.create", func(tx *Tx) error {
		subscriber, err := tx.activeUser(subscriberID)
		if err != nil {
			return err
		}
		channel, err := tx.user(channelID)
		if err != nil {
			return err
		}
		if _, exists := tx.findSubscription(subscriber.ID, channel.ID); exists {
			return conflictf("user %s already subscribed to %s", subscriber.ID, channel.ID)
		}
		created = models.Subscription{
			ID:           newID(),
			SubscriberID: subscriber.ID,
			ChannelID:    channel.ID,
			CreatedAt:    tx.now,
		}
		tx.Subscriptions.Put(created.ID, created)

		increment(&channel.SubscriberCount)
		channel.UpdatedAt = tx.now
		tx.Users.Put(channel.ID, channel)

		tx.notify(models.Notification{
			UserID:  channel.ID,
			ActorID: subscriber.ID,
			Kind:    models.NotificationSubscription,
			Message: subscriber.DisplayName + " subscribed to your channel",
		})
		return nil
	})
	return created, err
}

// Unsubscribe removes the subscription and decrements the channel's count.
func (s *Storage) Unsubscribe(subscriberID, channelID string) error {
	return s.mutate("subscription.delete", func(tx *Tx) error {
		sub, ok := tx.findSubscription(subscriberID, channelID)
		if !ok {
			return notFound("subscription", subscriberID+"->"+channelID)
		}
		tx.Subscriptions.Delete(sub.ID)
		if channel, ok := tx.Users.Get(channelID); ok {
			decrement(&channel.SubscriberCount)
			channel.UpdatedAt = tx.now
			tx.Users.Put(channel.ID, channel)
		}
		return nil
	})
}

func (s *Storage) IsSubscribed(subscriberID, channelID string) bool {
	found := false
	s.View(func(tx *Tx) {
		_, found = tx.findSubscription(subscriberID, channelID)
	})
	return found
}

func (s *Storage) QuerySubscriptions(pred func(models.Subscription) bool) []models.Subscription {
	return queryRows(s, func(d *dataset) Table[models.Subscription] { return d.Subscriptions }, pred)
}

// ListSubscriptions returns the channels subscriberID follows, newest first.
func (s *Storage) ListSubscriptions(subscriberID string) []models.Subscription {
	return newestSubscriptions(s.QuerySubscriptions(func(sub models.Subscription) bool {
		return sub.SubscriberID == subscriberID
	}))
}

// ListSubscribers returns who follows channelID, newest first.
func (s *Storage) ListSubscribers(channelID string) []models.Subscription {
	return newestSubscriptions(s.QuerySubscriptions(func(sub models.Subscription) bool {
		return sub.ChannelID == channelID
	}))
}

func newestSubscriptions(subs []models.Subscription) []models.Subscription {
	slices.SortFunc(subs, func(a, b models.Subscription) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return subs
}
