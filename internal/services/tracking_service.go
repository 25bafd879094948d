package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/urbanwoods/api/internal/domain"
	"github.com/urbanwoods/api/internal/platform/observability"
	"github.com/urbanwoods/api/internal/repositories"
)

// CarrierKind classifies how a carrier exposes shipment tracking.
type CarrierKind string

const (
	// CarrierDirect carriers publish a per-shipment deep link; the tracking
	// id is appended to the URL template and is therefore mandatory.
	CarrierDirect CarrierKind = "DIRECT"
	// CarrierLanding carriers only have a static tracking homepage, so the
	// tracking id is recorded but not part of the link.
	CarrierLanding CarrierKind = "LANDING"
)

// Carrier is one entry of the static carrier table. URLTemplate takes the
// tracking ID as its single format argument on direct carriers; LandingURL is
// the static page on landing carriers.
type Carrier struct {
	Code        string
	Name        string
	Kind        CarrierKind
	URLTemplate string
	LandingURL  string
}

var carriers = map[string]Carrier{
	"DELHIVERY": {
		Code:        "DELHIVERY",
		Name:        "Delhivery",
		Kind:        CarrierDirect,
		URLTemplate: "https://www.delhivery.com/track/package/%s",
	},
	"BLUEDART": {
		Code:        "BLUEDART",
		Name:        "Blue Dart",
		Kind:        CarrierDirect,
		URLTemplate: "https://www.bluedart.com/tracking?trackid=%s",
	},
	"DTDC": {
		Code:       "DTDC",
		Name:       "DTDC Courier",
		Kind:       CarrierLanding,
		LandingURL: "https://www.dtdc.in/trace.asp",
	},
	"URBANWOODS": {
		Code:       "URBANWOODS",
		Name:       "Urbanwoods Delivery",
		Kind:       CarrierLanding,
		LandingURL: "https://urbanwoods.in/track",
	},
}

// LookupCarrier resolves a carrier by its code, case-insensitively.
func LookupCarrier(code string) (Carrier, bool) {
	carrier, ok := carriers[strings.ToUpper(strings.TrimSpace(code))]
	return carrier, ok
}

// TrackingURL resolves the customer-facing link for a shipment.
func (c Carrier) TrackingURL(trackingID string) string {
	if c.Kind == CarrierDirect {
		return fmt.Sprintf(c.URLTemplate, trackingID)
	}
	return c.LandingURL
}

// TrackingServiceDeps wires the tracking service collaborators.
type TrackingServiceDeps struct {
	Orders        repositories.OrderRepository
	LegacyOrders  repositories.LegacyOrderRepository
	Finder        OrderService
	Events        OrderEventPublisher
	Notifications NotificationSink
	SMS           SMSSender
	Email         EmailSender
	Logger        *zap.Logger
	Clock         func() time.Time
}

type trackingService struct {
	orders        repositories.OrderRepository
	legacyOrders  repositories.LegacyOrderRepository
	finder        OrderService
	events        OrderEventPublisher
	notifications NotificationSink
	sms           SMSSender
	email         EmailSender
	logger        *zap.Logger
	clock         func() time.Time
}

// NewTrackingService validates dependencies and constructs the tracking service.
func NewTrackingService(deps TrackingServiceDeps) (TrackingService, error) {
	if deps.Orders == nil {
		return nil, errors.New("tracking service: order repository is required")
	}
	if deps.LegacyOrders == nil {
		return nil, errors.New("tracking service: legacy order repository is required")
	}
	if deps.Finder == nil {
		return nil, errors.New("tracking service: order finder is required")
	}
	svc := &trackingService{
		orders:        deps.Orders,
		legacyOrders:  deps.LegacyOrders,
		finder:        deps.Finder,
		events:        deps.Events,
		notifications: deps.Notifications,
		sms:           deps.SMS,
		email:         deps.Email,
		logger:        deps.Logger,
		clock:         deps.Clock,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	return svc, nil
}

// UpdateStatus transitions the delivery status of an order in either storage
// shape. Repeating the current status is a no-op; transitions out of a
// terminal state are rejected.
func (s *trackingService) UpdateStatus(ctx context.Context, orderID, rawStatus string) (domain.Order, error) {
	status, ok := domain.NormalizeOrderStatus(rawStatus)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, rawStatus)
	}

	current, err := s.finder.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if current.DeliveryStatus == status {
		return current, nil
	}
	if current.DeliveryStatus.IsTerminal() {
		return domain.Order{}, fmt.Errorf("%w: order is already %s", ErrInvalidStatus, current.DeliveryStatus)
	}

	// Cash-on-delivery collects on the doorstep, so delivery settles payment.
	var payStatus *domain.PaymentStatus
	if status == domain.OrderStatusDelivered && current.Payment.Status != domain.PaymentStatusPaid {
		paid := domain.PaymentStatusPaid
		payStatus = &paid
	}

	now := s.clock().UTC()
	updated, err := s.repoFor(current).UpdateStatus(ctx, current.ID, status, payStatus, now)
	if err != nil {
		return domain.Order{}, mapOrderRepositoryError(err)
	}
	updated.Source = current.Source

	s.afterStatusChange(ctx, updated, current.DeliveryStatus)
	return updated, nil
}

// UpdateTracking attaches carrier tracking and forces the order to shipped.
// Calling it again with the same payload is safe; the original shipment
// timestamp is preserved.
func (s *trackingService) UpdateTracking(ctx context.Context, cmd UpdateTrackingCommand) (domain.Order, error) {
	carrier, ok := LookupCarrier(cmd.Carrier)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %q", ErrInvalidCarrier, cmd.Carrier)
	}
	trackingID := strings.TrimSpace(cmd.TrackingID)
	if carrier.Kind == CarrierDirect && trackingID == "" {
		return domain.Order{}, fmt.Errorf("%w: carrier %s requires a tracking id", ErrInvalidInput, carrier.Code)
	}

	current, err := s.finder.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return domain.Order{}, err
	}
	if current.DeliveryStatus.IsTerminal() {
		return domain.Order{}, fmt.Errorf("%w: order is already %s", ErrInvalidStatus, current.DeliveryStatus)
	}

	tracking := domain.Tracking{
		Carrier:         carrier.Code,
		TrackingID:      trackingID,
		TrackingURL:     carrier.TrackingURL(trackingID),
		LiveLocationURL: strings.TrimSpace(cmd.LiveLocationURL),
		ETA:             cmd.ETA,
	}

	now := s.clock().UTC()
	updated, err := s.repoFor(current).UpdateTracking(ctx, current.ID, tracking, now)
	if err != nil {
		return domain.Order{}, mapOrderRepositoryError(err)
	}
	updated.Source = current.Source

	if current.DeliveryStatus != domain.OrderStatusShipped {
		s.afterStatusChange(ctx, updated, current.DeliveryStatus)
	}
	return updated, nil
}

// statusUpdater is the subset shared by both order repositories.
type statusUpdater interface {
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, payment *domain.PaymentStatus, now time.Time) (domain.Order, error)
	UpdateTracking(ctx context.Context, orderID string, tracking domain.Tracking, now time.Time) (domain.Order, error)
}

func (s *trackingService) repoFor(order domain.Order) statusUpdater {
	if order.Source == domain.OrderSourceLegacy {
		return s.legacyOrders
	}
	return s.orders
}

func (s *trackingService) afterStatusChange(ctx context.Context, order domain.Order, previous domain.OrderStatus) {
	logger := observability.FromContextOr(ctx, s.logger)

	if s.events != nil {
		eventType := EventOrderStatus
		if order.DeliveryStatus == domain.OrderStatusShipped {
			eventType = EventOrderShipped
		}
		if err := s.events.PublishOrderEvent(ctx, OrderEvent{
			Type:           eventType,
			OrderID:        order.ID,
			PreviousStatus: string(previous),
			CurrentStatus:  string(order.DeliveryStatus),
			OccurredAt:     s.clock().UTC(),
		}); err != nil {
			logger.Warn("status event publish failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	if s.notifications != nil {
		if _, err := s.notifications.CreateNotification(ctx, domain.Notification{
			Title:   "Order status changed",
			Message: fmt.Sprintf("Order %s moved from %s to %s", order.ID, previous, order.DeliveryStatus),
			Type:    "order",
		}); err != nil {
			logger.Warn("status notification record failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	if s.sms != nil && order.Customer.Phone != "" {
		if msg := statusSMSBody(order); msg != "" {
			if err := s.sms.Send(ctx, order.Customer.Phone, msg); err != nil {
				logger.Warn("status sms failed", zap.String("order_id", order.ID), zap.Error(err))
			}
		}
	}
	if s.email != nil && order.Customer.Email != "" {
		if err := s.email.StatusUpdate(ctx, order, previous); err != nil {
			logger.Warn("status email failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
}

// statusSMSBody returns the customer SMS for states worth interrupting them
// about. Other transitions go by email only.
func statusSMSBody(order domain.Order) string {
	switch order.DeliveryStatus {
	case domain.OrderStatusShipped:
		if order.Tracking.TrackingURL != "" {
			return fmt.Sprintf("Your urbanwoods order %s has shipped. Track it: %s", order.ID, order.Tracking.TrackingURL)
		}
		if order.Tracking.LiveLocationURL != "" {
			return fmt.Sprintf("Your urbanwoods order %s is out for delivery. Live location: %s", order.ID, order.Tracking.LiveLocationURL)
		}
		return fmt.Sprintf("Your urbanwoods order %s has shipped.", order.ID)
	case domain.OrderStatusDelivered:
		return fmt.Sprintf("Your urbanwoods order %s was delivered. Thank you!", order.ID)
	case domain.OrderStatusCancelled:
		return fmt.Sprintf("Your urbanwoods order %s was cancelled.", order.ID)
	}
	return ""
}
