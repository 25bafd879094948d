package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/urbanwoods/api/internal/domain"
	"github.com/urbanwoods/api/internal/repositories"
)

const defaultTopSellingLimit = 25

// SalesServiceDeps wires the sales aggregation collaborators. Clock is
// optional and defaults to time.Now.
type SalesServiceDeps struct {
	Orders       repositories.OrderRepository
	LegacyOrders repositories.LegacyOrderRepository
	Clock        func() time.Time
	Logger       *zap.Logger
}

type salesService struct {
	orders       repositories.OrderRepository
	legacyOrders repositories.LegacyOrderRepository
	clock        func() time.Time
	logger       *zap.Logger
}

// NewSalesService validates dependencies and constructs the sales service.
func NewSalesService(deps SalesServiceDeps) (SalesService, error) {
	if deps.Orders == nil {
		return nil, errors.New("sales service: order repository is required")
	}
	if deps.LegacyOrders == nil {
		return nil, errors.New("sales service: legacy order repository is required")
	}
	svc := &salesService{
		orders:       deps.Orders,
		legacyOrders: deps.LegacyOrders,
		clock:        deps.Clock,
		logger:       deps.Logger,
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc, nil
}

// TopSelling aggregates units sold and revenue per product across both order
// storage shapes, skipping cancelled orders. Custom items group by name since
// they have no catalog reference.
func (s *salesService) TopSelling(ctx context.Context, query TopSellingQuery) ([]domain.ProductSales, error) {
	from, to, err := s.resolveWindow(query)
	if err != nil {
		return nil, err
	}

	collection, err := s.orders.List(ctx, repositories.OrderListFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	legacy, err := s.legacyOrders.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*domain.ProductSales)
	accumulate := func(order domain.Order) {
		if order.DeliveryStatus == domain.OrderStatusCancelled {
			return
		}
		for _, item := range order.Items {
			key := "custom:" + item.Name
			productID := ""
			if item.ProductRef != nil && *item.ProductRef != "" {
				productID = *item.ProductRef
				key = productID
			}
			row, ok := totals[key]
			if !ok {
				row = &domain.ProductSales{ProductID: productID, Name: item.Name}
				totals[key] = row
			}
			row.UnitsSold += item.Quantity
			row.Revenue += item.Total
		}
	}

	for _, order := range collection {
		accumulate(order)
	}
	for _, order := range legacy {
		if !inWindow(order.PlacedAt, from, to) {
			continue
		}
		accumulate(order)
	}

	rows := make([]domain.ProductSales, 0, len(totals))
	for _, row := range totals {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UnitsSold != rows[j].UnitsSold {
			return rows[i].UnitsSold > rows[j].UnitsSold
		}
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return rows[i].Name < rows[j].Name
	})

	limit := query.Limit
	if limit <= 0 {
		limit = defaultTopSellingLimit
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// resolveWindow turns the query into an explicit [from, to) pair. A named
// range covers the current calendar period (weeks start on Monday); a
// year/month pair covers that month, or the whole year when Month is zero.
func (s *salesService) resolveWindow(query TopSellingQuery) (*time.Time, *time.Time, error) {
	if query.Year > 0 {
		if query.Month < 0 || query.Month > 12 {
			return nil, nil, fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidInput)
		}
		from := time.Date(query.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(1, 0, 0)
		if query.Month > 0 {
			from = time.Date(query.Year, time.Month(query.Month), 1, 0, 0, 0, 0, time.UTC)
			to = from.AddDate(0, 1, 0)
		}
		return &from, &to, nil
	}

	name := strings.ToLower(strings.TrimSpace(query.Range))
	if name == "" {
		return query.From, query.To, nil
	}

	now := s.clock().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var from, to time.Time
	switch name {
	case "daily", "day":
		from, to = today, today.AddDate(0, 0, 1)
	case "weekly", "week":
		offset := (int(today.Weekday()) + 6) % 7
		from = today.AddDate(0, 0, -offset)
		to = from.AddDate(0, 0, 7)
	case "monthly", "month":
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(0, 1, 0)
	case "yearly", "year":
		from = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(1, 0, 0)
	default:
		return nil, nil, fmt.Errorf("%w: unknown range %q", ErrInvalidInput, query.Range)
	}
	return &from, &to, nil
}

// inWindow applies the [from, to) bound used by the collection query to
// legacy orders, which are filtered in memory.
func inWindow(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}
