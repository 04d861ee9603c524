package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type emailService struct {
	apiKey    string
	fromEmail string
	fromName  string
}

func NewEmailService(apiKey, fromEmail, fromName string) EmailService {
	return &emailService{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *emailService) send(to, toName, subject, plainText string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail(toName, to)
	message := mail.NewSingleEmail(from, subject, recipient, plainText, "")

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

func (s *emailService) SendOverstayDetected(ctx context.Context, email, name, listingName string, daysOverdue int, penaltyCents int64, policyText string) error {
	subject := "Your storage rental is past its end date"
	body := fmt.Sprintf("Hello %s,\n\nYour rental of %s is %d day(s) past its end date.", name, listingName, daysOverdue)
	if penaltyCents > 0 {
		body += fmt.Sprintf("\n\nAn overstay penalty of %s is accruing and will be reviewed by a manager.", formatCents(penaltyCents))
	} else {
		body += "\n\nYou are currently within the grace period. Please return or extend your rental to avoid penalties."
	}
	if policyText != "" {
		body += "\n\nPolicy: " + policyText
	}
	body += "\n\nBest regards,\nThe Storhub Team"
	return s.send(email, name, subject, body)
}

func (s *emailService) SendOverstayOperatorAlert(ctx context.Context, email, listingName string, bookingID int64, daysOverdue int, penaltyCents int64) error {
	subject := fmt.Sprintf("Overstay detected: %s", listingName)
	body := fmt.Sprintf("Booking %d for %s is %d day(s) overdue.\n\nTentative penalty: %s.\nThe record is in your review queue.",
		bookingID, listingName, daysOverdue, formatCents(penaltyCents))
	return s.send(email, "", subject, body)
}

func (s *emailService) SendPenaltyCharged(ctx context.Context, email, name, listingName string, amountCents int64) error {
	subject := "Overstay penalty charged"
	body := fmt.Sprintf("Hello %s,\n\nYour saved payment method was charged %s for the overstay on %s.\n\nBest regards,\nThe Storhub Team",
		name, formatCents(amountCents), listingName)
	return s.send(email, name, subject, body)
}

func (s *emailService) SendPaymentLink(ctx context.Context, email, name string, amountCents int64, link, failureReason string) error {
	subject := "Action required: overstay penalty payment"
	body := fmt.Sprintf(
		"Hello %s,\n\nWe could not charge your saved payment method for your overstay penalty of %s (%s).\n\nPlease pay using this link within 24 hours:\n\n%s\n\nBest regards,\nThe Storhub Team",
		name, formatCents(amountCents), failureReason, link)
	return s.send(email, name, subject, body)
}

func (s *emailService) SendEscalationSummary(ctx context.Context, email string, recordID int64, renterName string, amountCents int64, daysOverdue int, failureReason string) error {
	subject := fmt.Sprintf("Overstay charge failed - record %d", recordID)
	body := fmt.Sprintf(
		"Overstay record %d escalated.\n\nRenter: %s\nAmount: %s\nDays overdue: %d\nFailure reason: %s\n\nA self-serve payment link was sent to the renter. Begin manual collection if it goes unpaid.",
		recordID, renterName, formatCents(amountCents), daysOverdue, failureReason)
	return s.send(email, "", subject, body)
}

func (s *emailService) SendRefundIssued(ctx context.Context, email, name string, amountCents int64) error {
	subject := "Overstay penalty refund issued"
	body := fmt.Sprintf("Hello %s,\n\nA refund of %s was issued for your overstay penalty. It should appear on your statement within a few business days.\n\nBest regards,\nThe Storhub Team",
		name, formatCents(amountCents))
	return s.send(email, name, subject, body)
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
