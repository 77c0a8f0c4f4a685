package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"telegram-shop/model"
)

type Audience int

const (
	AudienceAdmin Audience = iota
	AudienceCustomer
)

func (a Audience) String() string {
	if a == AudienceCustomer {
		return "customer"
	}
	return "admin"
}

// DeliveryError reports which recipient a notification could not reach.
type DeliveryError struct {
	Recipient string
	Audience  Audience
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notify %s %s: %v", e.Audience, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Notifier struct {
	sender      Sender
	adminChatID string
	loc         *time.Location
	currency    string
}

func NewNotifier(sender Sender, adminChatID string, loc *time.Location, currency string) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{sender: sender, adminChatID: adminChatID, loc: loc, currency: currency}
}

// NotifyOrder messages the admin chat and then, when the order carries a
// chat id, the customer. It stops at the first failed delivery.
func (n *Notifier) NotifyOrder(ctx context.Context, order *model.Order) error {
	if n.adminChatID == "" {
		log.WithField("orderID", order.ID).Warn("admin chat id is not configured, skipping admin notification")
	} else {
		text := RenderOrder(order, AudienceAdmin, n.loc, n.currency)
		if err := n.sender.Send(ctx, n.adminChatID, text, nil); err != nil {
			return &DeliveryError{Recipient: n.adminChatID, Audience: AudienceAdmin, Err: err}
		}
	}

	if order.ChatID == "" {
		return nil
	}
	text := RenderOrder(order, AudienceCustomer, n.loc, n.currency)
	if err := n.sender.Send(ctx, order.ChatID, text, nil); err != nil {
		return &DeliveryError{Recipient: order.ChatID, Audience: AudienceCustomer, Err: err}
	}
	return nil
}

// RenderOrder builds the Telegram HTML message for one audience.
// Customer-supplied fields are escaped.
func RenderOrder(order *model.Order, audience Audience, loc *time.Location, currency string) string {
	var b strings.Builder

	if audience == AudienceAdmin {
		b.WriteString("🛒 <b>Новый заказ!</b>\n\n")
		fmt.Fprintf(&b, "🆔 <b>Заказ:</b> #%s\n", html.EscapeString(order.ID))
		fmt.Fprintf(&b, "👤 <b>Клиент:</b> %s\n", html.EscapeString(order.CustomerName))
		fmt.Fprintf(&b, "📞 <b>Телефон:</b> %s\n", html.EscapeString(order.CustomerPhone))
		fmt.Fprintf(&b, "📍 <b>Адрес:</b> %s\n", html.EscapeString(order.CustomerAddress))
		fmt.Fprintf(&b, "💳 <b>Оплата:</b> %s\n\n", PaymentLabel(order.PaymentMethod))
		b.WriteString("📦 <b>Товары:</b>\n")
		writeItems(&b, order.Items, currency)
		fmt.Fprintf(&b, "\n💰 <b>Итого:</b> %s\n", FormatPrice(order.Total, currency))
		fmt.Fprintf(&b, "⏰ <b>Время:</b> %s", FormatTime(order.CreatedAt, loc))
		return b.String()
	}

	b.WriteString("✅ <b>Заказ подтвержден!</b>\n\n")
	b.WriteString("Спасибо за ваш заказ! Мы получили следующие данные:\n\n")
	fmt.Fprintf(&b, "👤 <b>Имя:</b> %s\n", html.EscapeString(order.CustomerName))
	fmt.Fprintf(&b, "📞 <b>Телефон:</b> %s\n", html.EscapeString(order.CustomerPhone))
	fmt.Fprintf(&b, "📍 <b>Адрес:</b> %s\n\n", html.EscapeString(order.CustomerAddress))
	b.WriteString("📦 <b>Ваш заказ:</b>\n")
	writeItems(&b, order.Items, currency)
	fmt.Fprintf(&b, "\n💰 <b>К оплате:</b> %s\n\n", FormatPrice(order.Total, currency))
	b.WriteString("Мы свяжемся с вами в ближайшее время для подтверждения заказа и уточнения деталей доставки.")
	return b.String()
}

func ItemLine(line model.CartLine, currency string) string {
	return fmt.Sprintf("• %s × %d — %s", html.EscapeString(line.Title), line.Quantity, FormatPrice(line.LineTotal(), currency))
}

func writeItems(b *strings.Builder, items []model.CartLine, currency string) {
	for _, l := range items {
		b.WriteString(ItemLine(l, currency))
		b.WriteByte('\n')
	}
}
