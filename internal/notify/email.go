package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	domain "github.com/urbanwoods/api/internal/domain"
	"github.com/urbanwoods/api/internal/platform/config"
)

// EmailSender delivers templated transactional email over SMTP.
type EmailSender struct {
	cfg  config.SMTPConfig
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender constructs an email sender from configuration.
func NewEmailSender(cfg config.SMTPConfig) *EmailSender {
	return &EmailSender{
		cfg:  cfg,
		send: smtp.SendMail,
	}
}

// Enabled reports whether SMTP delivery is configured.
func (e *EmailSender) Enabled() bool {
	return e != nil && strings.TrimSpace(e.cfg.Host) != "" && strings.TrimSpace(e.cfg.From) != ""
}

// OrderConfirmation mails the customer their order summary.
func (e *EmailSender) OrderConfirmation(ctx context.Context, order domain.Order) error {
	to := strings.TrimSpace(order.Customer.Email)
	if to == "" {
		return errors.New("notify: order has no customer email")
	}
	subject := fmt.Sprintf("Order %s confirmed", order.ID)
	body := orderSummaryBody("Thank you for your order!", order)
	return e.deliver(ctx, []string{to}, subject, body)
}

// AdminNewOrderAlert mails the storefront admin about a freshly placed order.
func (e *EmailSender) AdminNewOrderAlert(ctx context.Context, order domain.Order) error {
	admin := strings.TrimSpace(e.cfg.AdminEmail)
	if admin == "" {
		return errors.New("notify: admin email not configured")
	}
	subject := fmt.Sprintf("New order %s from %s", order.ID, order.Customer.Name)
	body := orderSummaryBody("A new order was placed.", order)
	return e.deliver(ctx, []string{admin}, subject, body)
}

// PaymentSuccess mails the customer once their online payment is verified.
func (e *EmailSender) PaymentSuccess(ctx context.Context, order domain.Order) error {
	to := strings.TrimSpace(order.Customer.Email)
	if to == "" {
		return errors.New("notify: order has no customer email")
	}
	subject := fmt.Sprintf("Payment received for order %s", order.ID)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nWe received your payment of Rs. %d for order %s.\r\nWe will start preparing it right away.\r\n",
		order.Customer.Name, order.TotalAmount, order.ID,
	)
	return e.deliver(ctx, []string{to}, subject, body)
}

// AdminPaymentAlert mails the admin that a paid order needs fulfilment.
func (e *EmailSender) AdminPaymentAlert(ctx context.Context, order domain.Order) error {
	admin := strings.TrimSpace(e.cfg.AdminEmail)
	if admin == "" {
		return errors.New("notify: admin email not configured")
	}
	subject := fmt.Sprintf("Payment verified for order %s", order.ID)
	body := orderSummaryBody("Payment was verified for this order.", order)
	return e.deliver(ctx, []string{admin}, subject, body)
}

// StatusUpdate mails the customer when the delivery status changes.
func (e *EmailSender) StatusUpdate(ctx context.Context, order domain.Order, previous domain.OrderStatus) error {
	to := strings.TrimSpace(order.Customer.Email)
	if to == "" {
		return errors.New("notify: order has no customer email")
	}
	subject := fmt.Sprintf("Order %s is now %s", order.ID, order.DeliveryStatus)
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\r\n\r\nYour order %s moved from %s to %s.\r\n", order.Customer.Name, order.ID, previous, order.DeliveryStatus)
	if order.DeliveryStatus == domain.OrderStatusShipped && order.Tracking.TrackingURL != "" {
		fmt.Fprintf(&b, "Track it here: %s\r\n", order.Tracking.TrackingURL)
	}
	return e.deliver(ctx, []string{to}, subject, b.String())
}

func (e *EmailSender) deliver(ctx context.Context, to []string, subject, body string) error {
	if !e.Enabled() {
		return errors.New("notify: smtp not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if strings.TrimSpace(e.cfg.Username) != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	if err := e.send(addr, auth, e.cfg.From, to, []byte(msg.String())); err != nil {
		return fmt.Errorf("notify: send email: %w", err)
	}
	return nil
}

func orderSummaryBody(intro string, order domain.Order) string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\r\n\r\n")
	fmt.Fprintf(&b, "Order: %s\r\n", order.ID)
	fmt.Fprintf(&b, "Customer: %s (%s)\r\n", order.Customer.Name, order.Customer.Phone)
	fmt.Fprintf(&b, "Status: %s\r\n\r\nItems:\r\n", order.DeliveryStatus)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "  - %s x%d @ Rs. %d = Rs. %d\r\n", item.Name, item.Quantity, item.UnitPrice, item.Total)
		if item.Wood != nil {
			fmt.Fprintf(&b, "    wood: %s\r\n", item.Wood.Type)
		}
	}
	fmt.Fprintf(&b, "\r\nTotal: Rs. %d\r\n", order.TotalAmount)
	if order.ShippingAddress.City != "" {
		fmt.Fprintf(&b, "Ship to: %s, %s %s\r\n", order.ShippingAddress.Line1, order.ShippingAddress.City, order.ShippingAddress.PostalCode)
	}
	return b.String()
}
