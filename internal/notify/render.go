// Package notify renders notification jobs into emails and sends them.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/price"
)

// Message is a rendered plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Render builds the email for a job. Unknown kinds and payloads that do
// not decode are permanent failures.
func Render(kind domain.NotificationKind, payload json.RawMessage) (Message, error) {
	switch kind {
	case domain.NotifySubscriptionConfirmed:
		var p domain.SubscriptionConfirmedPayload
		if err := decode(kind, payload, &p, &p.ToEmail); err != nil {
			return Message{}, err
		}
		return Message{
			To:      p.ToEmail,
			Subject: fmt.Sprintf("You are now tracking %s", p.ProductName),
			Body: lines(
				greeting(p.Name),
				fmt.Sprintf("You will get an email whenever the price of %s changes.", p.ProductName),
				"",
				"To stop these emails, unsubscribe here:",
				p.UnsubscribeLink,
			),
		}, nil

	case domain.NotifyUnsubscribed:
		var p domain.UnsubscribedPayload
		if err := decode(kind, payload, &p, &p.ToEmail); err != nil {
			return Message{}, err
		}
		return Message{
			To:      p.ToEmail,
			Subject: fmt.Sprintf("You stopped tracking %s", p.ProductName),
			Body: lines(
				greeting(p.Name),
				fmt.Sprintf("You will no longer get price updates for %s.", p.ProductName),
				"",
				"Changed your mind? Subscribe again here:",
				p.SubscriptionLink,
			),
		}, nil

	case domain.NotifyPriceChanged:
		var p domain.PriceChangedPayload
		if err := decode(kind, payload, &p, &p.ToEmail); err != nil {
			return Message{}, err
		}
		verb := "gone up"
		if p.ChangeType == domain.ChangeDrop {
			verb = "dropped"
		}
		return Message{
			To:      p.ToEmail,
			Subject: fmt.Sprintf("Price %s: %s", strings.ToLower(string(p.ChangeType)), p.ProductName),
			Body: lines(
				greeting(p.Name),
				fmt.Sprintf("The price of %s has %s by %s.", p.ProductName, verb, price.Format(p.PriceDiff)),
				"",
				"Previous price: "+price.Format(p.PreviousPrice),
				"New price:      "+price.Format(p.NewPrice),
				"Checked on:     "+p.DateChecked,
				"",
				p.ProductLink,
			),
		}, nil

	case domain.NotifyProductRemoved:
		var p domain.ProductRemovedPayload
		if err := decode(kind, payload, &p, &p.ToEmail); err != nil {
			return Message{}, err
		}
		return Message{
			To:      p.ToEmail,
			Subject: fmt.Sprintf("%s is no longer tracked", p.ProductName),
			Body: lines(
				greeting(p.Name),
				fmt.Sprintf("%s has been removed from the tracker, so your subscription has ended.", p.ProductName),
			),
		}, nil
	}

	return Message{}, domain.Errorf(domain.KindPermanent, "unknown notification kind %q", kind)
}

func decode(kind domain.NotificationKind, payload json.RawMessage, dst any, to *string) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return domain.Wrap(domain.KindPermanent, err, fmt.Sprintf("decoding %s payload", kind))
	}
	if *to == "" {
		return domain.Errorf(domain.KindPermanent, "%s payload has no recipient", kind)
	}
	return nil
}

func greeting(name string) string {
	if name == "" {
		return "Hi,"
	}
	return fmt.Sprintf("Hi %s,", name)
}

func lines(ls ...string) string {
	return strings.Join(ls, "\r\n") + "\r\n"
}
