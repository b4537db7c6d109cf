package storage

import (
	"cmp"
	"errors"
	"slices"

	"vidshare/internal/models"
)

// notify records a notification for n.UserID unless the actor is the
// recipient.
func (tx *Tx) notify(n models.Notification) {
	if n.UserID == "" || n.UserID == n.ActorID {
		return
	}
	n.ID = newID()
	n.CreatedAt = tx.now
	tx.Notifications.Put(n.ID, n)
}

// notifySubscribers tells every subscriber of the owner about a newly
// published public video.
func (tx *Tx) notifySubscribers(video models.Video, owner models.User) {
	if video.Privacy != models.PrivacyPublic {
		return
	}
	for _, sub := range tx.Subscriptions {
		if sub.ChannelID != owner.ID {
			continue
		}
		tx.notify(models.Notification{
			UserID:  sub.SubscriberID,
			ActorID: owner.ID,
			Kind:    models.NotificationNewVideo,
			VideoID: video.ID,
			Message: owner.DisplayName + " uploaded " + video.Title,
		})
	}
}

// ListNotifications returns the user's notifications, newest first.
func (s *Storage) ListNotifications(userID string, unreadOnly bool) []models.Notification {
	rows := queryRows(s, func(d *dataset) Table[models.Notification] { return d.Notifications }, func(n models.Notification) bool {
		return n.UserID == userID && (!unreadOnly || !n.Read)
	})
	slices.SortFunc(rows, func(a, b models.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return rows
}

func (s *Storage) UnreadNotificationCount(userID string) int {
	return len(s.ListNotifications(userID, true))
}

// MarkNotificationRead flags one notification; only its recipient may do so.
func (s *Storage) MarkNotificationRead(userID, id string) (models.Notification, error) {
	var updated models.Notification
	err := s.mutate("notification.read", func(tx *Tx) error {
		n, ok := tx.Notifications.Get(id)
		if !ok {
			return notFound("notification", id)
		}
		if n.UserID != userID {
			return unauthorizedf("notification %s belongs to another user", id)
		}
		if n.Read {
			updated = n
			return errNoChanges
		}
		n.Read = true
		tx.Notifications.Put(id, n)
		updated = n
		return nil
	})
	if errors.Is(err, errNoChanges) {
		return updated, nil
	}
	return updated, err
}

// MarkAllNotificationsRead returns how many notifications changed.
func (s *Storage) MarkAllNotificationsRead(userID string) (int, error) {
	changed := 0
	err := s.mutate("notification.read_all", func(tx *Tx) error {
		for id, n := range tx.Notifications {
			if n.UserID == userID && !n.Read {
				n.Read = true
				tx.Notifications.Put(id, n)
				changed++
			}
		}
		if changed == 0 {
			return errNoChanges
		}
		return nil
	})
	if errors.Is(err, errNoChanges) {
		return 0, nil
	}
	return changed, err
}
