package notify

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"

	domain "github.com/urbanwoods/api/internal/domain"
	fs "github.com/urbanwoods/api/internal/platform/firestore"
)

const notificationsCollection = "notifications"

type notificationDocument struct {
	Title      string    `firestore:"title"`
	Message    string    `firestore:"message"`
	Type       string    `firestore:"type,omitempty"`
	ProductRef string    `firestore:"productRef,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

// NotificationStore persists admin-facing notifications.
type NotificationStore struct {
	base  *fs.BaseRepository[notificationDocument]
	clock func() time.Time
	newID func() string
}

// NewNotificationStore constructs a Firestore-backed notification store.
func NewNotificationStore(provider *fs.Provider) *NotificationStore {
	return &NotificationStore{
		base:  fs.NewBaseRepository[notificationDocument](provider, notificationsCollection, nil),
		clock: time.Now,
		newID: func() string {
			return "ntf_" + strings.ToLower(ulid.Make().String())
		},
	}
}

// CreateNotification persists one notification and returns it with its
// assigned ID and timestamp.
func (s *NotificationStore) CreateNotification(ctx context.Context, notification domain.Notification) (domain.Notification, error) {
	if notification.ID == "" {
		notification.ID = s.newID()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.clock().UTC()
	}
	doc := notificationDocument{
		Title:      notification.Title,
		Message:    notification.Message,
		Type:       notification.Type,
		ProductRef: notification.ProductRef,
		CreatedAt:  notification.CreatedAt,
	}
	if err := s.base.Create(ctx, notification.ID, doc); err != nil {
		return domain.Notification{}, err
	}
	return notification, nil
}

// ListRecent returns the newest notifications, most recent first.
func (s *NotificationStore) ListRecent(ctx context.Context, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	docs, err := s.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("createdAt", firestore.Desc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	notifications := make([]domain.Notification, 0, len(docs))
	for _, doc := range docs {
		notifications = append(notifications, domain.Notification{
			ID:         doc.ID,
			Title:      doc.Data.Title,
			Message:    doc.Data.Message,
			Type:       doc.Data.Type,
			ProductRef: doc.Data.ProductRef,
			CreatedAt:  doc.Data.CreatedAt,
		})
	}
	return notifications, nil
}
