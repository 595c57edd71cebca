package notify

import (
	"context"
	"fmt"

	"github.com/mauricegift/jewell-haven-sub000/internal/models"
)

// OTPMessage is what a one-time code is sent with.
type OTPMessage struct {
	Name             string
	Phone            string
	Email            string
	Code             string
	Purpose          models.OTPPurpose
	ExpiresInMinutes int
}

func (m OTPMessage) intro() string {
	if m.Purpose == models.OTPReset {
		return "Use this code to reset your Jewell Haven password."
	}
	return "Use this code to verify your Jewell Haven account."
}

// SendOTP sends the code by SMS and email and reports both outcomes.
func (n *Notifier) SendOTP(ctx context.Context, m OTPMessage) []Result {
	sms := fmt.Sprintf("Your Jewell Haven code is %s. It expires in %d minutes.", m.Code, m.ExpiresInMinutes)
	data := struct {
		OTPMessage
		Intro string
	}{m, m.intro()}

	return []Result{
		n.sendSMS(ctx, m.Phone, sms),
		n.sendEmail(ctx, m.Email, "Your Jewell Haven code", "otp.html", data),
	}
}

func (n *Notifier) OrderPlaced(ctx context.Context, o *models.Order) []Result {
	sms := fmt.Sprintf("Jewell Haven: order %s received. Total KES %s.", o.OrderNumber, o.Total.StringFixed(2))
	return []Result{
		n.sendSMS(ctx, o.DeliveryPhone, sms),
		n.sendEmail(ctx, o.DeliveryEmail, "Order "+o.OrderNumber+" received", "order_placed.html", map[string]any{"Order": o}),
	}
}

func (n *Notifier) PaymentReceived(ctx context.Context, o *models.Order) []Result {
	sms := fmt.Sprintf("Jewell Haven: payment for order %s received. Receipt %s.", o.OrderNumber, o.MpesaReceiptNumber)
	return []Result{
		n.sendSMS(ctx, o.DeliveryPhone, sms),
		n.sendEmail(ctx, o.DeliveryEmail, "Payment received for "+o.OrderNumber, "order_paid.html", map[string]any{"Order": o}),
	}
}

func (n *Notifier) OrderStatusChanged(ctx context.Context, o *models.Order) []Result {
	sms := fmt.Sprintf("Jewell Haven: order %s is now %s.", o.OrderNumber, o.Status)
	return []Result{
		n.sendSMS(ctx, o.DeliveryPhone, sms),
		n.sendEmail(ctx, o.DeliveryEmail, "Order "+o.OrderNumber+" update", "order_status.html", map[string]any{"Order": o}),
	}
}

func (n *Notifier) ContactReply(ctx context.Context, c *models.Contact, r *models.ContactReply) Result {
	subject := "Re: " + c.Subject
	if c.Subject == "" {
		subject = "Re: your message to Jewell Haven"
	}
	return n.sendEmail(ctx, c.Email, subject, "contact_reply.html", map[string]any{"Contact": c, "Reply": r})
}
