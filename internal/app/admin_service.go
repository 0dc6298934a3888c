package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cimillas/giftlink/internal/claimtoken"
	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/domain"
)

const AdminPageSize = 20

// SessionAuthenticator issues and checks operator sessions.
type SessionAuthenticator interface {
	Login(password string) (string, bool)
	Validate(token string) bool
}

type AdminService struct {
	auth      SessionAuthenticator
	orders    OrderRepository
	catalog   catalogItems
	audit     *AuditLog
	notifier  *NotificationService
	fulfiller Fulfiller
	baseURL   string
	clock     clock.Clock
	logger    *slog.Logger
}

func NewAdminService(auth SessionAuthenticator, orders OrderRepository, catalog catalogItems, audit *AuditLog, notifier *NotificationService, fulfiller Fulfiller, baseURL string, clk clock.Clock, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{
		auth:      auth,
		orders:    orders,
		catalog:   catalog,
		audit:     audit,
		notifier:  notifier,
		fulfiller: fulfiller,
		baseURL:   baseURL,
		clock:     clk,
		logger:    logger,
	}
}

// Login exchanges the operator password for a session token.
func (s *AdminService) Login(ctx context.Context, password string) (string, error) {
	token, ok := s.auth.Login(password)
	if !ok {
		s.logger.WarnContext(ctx, "admin login rejected")
		return "", domain.ErrAuth
	}
	s.logger.InfoContext(ctx, "admin login")
	return token, nil
}

func (s *AdminService) ValidateSession(token string) bool {
	return s.auth.Validate(token)
}

type ListOrdersInput struct {
	Search string
	Status string
	Page   int
}

type OrderPage struct {
	Orders     []domain.GiftOrder
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

func (s *AdminService) ListOrders(ctx context.Context, in ListOrdersInput) (OrderPage, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	filter := domain.OrderFilter{
		Search: strings.TrimSpace(in.Search),
		Limit:  AdminPageSize,
		Offset: (page - 1) * AdminPageSize,
	}
	if in.Status != "" {
		status := domain.OrderStatus(strings.ToUpper(in.Status))
		if !status.Valid() {
			return OrderPage{}, domain.ValidationErrors{{Field: "status", Message: "Unknown order status"}}
		}
		filter.Status = status
	}

	orders, total, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return OrderPage{}, err
	}
	return OrderPage{
		Orders:     orders,
		Page:       page,
		PerPage:    AdminPageSize,
		Total:      total,
		TotalPages: (total + AdminPageSize - 1) / AdminPageSize,
	}, nil
}

type OrderDetail struct {
	Order  domain.GiftOrder
	Item   *domain.CatalogItem
	Events []domain.AuditEvent
	Emails []domain.OutboxEmail
}

// GetOrder returns the order with its selected item, audit trail (newest first) and outbox.
func (s *AdminService) GetOrder(ctx context.Context, orderID string) (OrderDetail, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	if order.Status == domain.OrderStatusActive && order.ClaimExpired(s.clock.Now()) {
		if order, _, err = expireIfDue(ctx, s.orders, s.audit, orderID, s.clock.Now()); err != nil {
			return OrderDetail{}, err
		}
	}

	detail := OrderDetail{Order: order}
	if order.SelectedItemID != nil {
		item, err := s.catalog.GetItem(ctx, *order.SelectedItemID)
		switch {
		case err == nil:
			detail.Item = &item
		case !errors.Is(err, domain.ErrCatalogItemNotFound):
			return OrderDetail{}, err
		}
	}

	events, err := s.audit.Events(ctx, orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	detail.Events = events

	if detail.Emails, err = s.notifier.Emails(ctx, orderID); err != nil {
		return OrderDetail{}, err
	}
	return detail, nil
}

// RetryFulfillment re-runs fulfillment for a LOCKED or FULFILLMENT_FAILED order
// and reports the provider outcome directly.
func (s *AdminService) RetryFulfillment(ctx context.Context, orderID string) (FulfillmentResult, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return FulfillmentResult{}, err
	}
	if order.Status != domain.OrderStatusFulfillmentFailed && order.Status != domain.OrderStatusLocked {
		return FulfillmentResult{}, fmt.Errorf("%w: cannot retry fulfillment for order in %s status", domain.ErrInvalidStateTransition, order.Status)
	}
	if err := s.audit.Record(ctx, orderID, domain.AuditFulfillmentRetried, "Admin retried fulfillment", map[string]any{
		"previousStatus": string(order.Status),
	}); err != nil {
		return FulfillmentResult{}, err
	}
	s.logger.InfoContext(ctx, "admin retry fulfillment", "order_id", orderID, "status", string(order.Status))
	return s.fulfiller.Fulfill(ctx, orderID)
}

// ResendNotification rotates the claim token of an ACTIVE order, so the
// previous link stops working, and mails the new link to the recipient.
func (s *AdminService) ResendNotification(ctx context.Context, orderID string) (string, error) {
	var (
		order    domain.GiftOrder
		rawToken string
	)
	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusActive {
			return fmt.Errorf("%w: cannot resend email for order in %s status", domain.ErrInvalidStateTransition, order.Status)
		}

		rawToken, err = claimtoken.Generate()
		if err != nil {
			return err
		}
		hash, last4 := claimtoken.Hash(rawToken), claimtoken.Last4(rawToken)
		order.ClaimTokenHash = &hash
		order.ClaimTokenLast4 = &last4
		order.UpdatedAt = s.clock.Now()
		if err := s.orders.UpdateOrder(txCtx, order, domain.OrderStatusActive); err != nil {
			return err
		}
		return s.audit.Record(txCtx, order.ID, domain.AuditEmailResent, "Admin resent gift email to recipient", map[string]any{
			"tokenLast4": last4,
		})
	})
	if err != nil {
		return "", err
	}

	s.notifier.sendRecipient(ctx, order, s.baseURL, rawToken)
	s.logger.InfoContext(ctx, "admin resent claim link", "order_id", orderID, "claim_token_last4", *order.ClaimTokenLast4)
	return claimURL(s.baseURL, rawToken), nil
}

// CancelOrder cancels an order that has not been claimed yet.
func (s *AdminService) CancelOrder(ctx context.Context, orderID string) (domain.GiftOrder, error) {
	var order domain.GiftOrder
	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		prev := order.Status
		if err := domain.ValidateTransition(prev, domain.OrderStatusCanceled); err != nil {
			return err
		}
		order.Status = domain.OrderStatusCanceled
		order.UpdatedAt = s.clock.Now()
		if err := s.orders.UpdateOrder(txCtx, order, prev); err != nil {
			return err
		}
		return s.audit.Record(txCtx, order.ID, domain.AuditOrderCanceled, "Admin canceled order", map[string]any{
			"previousStatus": string(prev),
		})
	})
	if err != nil {
		return domain.GiftOrder{}, err
	}
	s.logger.InfoContext(ctx, "admin canceled order", "order_id", orderID)
	return order, nil
}
