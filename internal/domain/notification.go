package domain

import (
	"encoding/json"
	"fmt"
)

type NotificationKind string

const (
	NotifySubscriptionConfirmed NotificationKind = "subscription_confirmed"
	NotifyUnsubscribed          NotificationKind = "unsubscribed"
	NotifyPriceChanged          NotificationKind = "price_changed"
	NotifyProductRemoved        NotificationKind = "product_removed"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case NotifySubscriptionConfirmed, NotifyUnsubscribed, NotifyPriceChanged, NotifyProductRemoved:
		return true
	}
	return false
}

// NotificationJob is an email waiting to be sent.
type NotificationJob struct {
	Kind      NotificationKind `json:"kind"`
	Recipient string           `json:"recipient"`
	Payload   json.RawMessage  `json:"payload"`
}

// NewNotificationJob encodes payload into a job of the given kind.
func NewNotificationJob(kind NotificationKind, recipient string, payload any) (NotificationJob, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return NotificationJob{}, fmt.Errorf("marshaling %s payload: %w", kind, err)
	}
	return NotificationJob{Kind: kind, Recipient: recipient, Payload: data}, nil
}

type SubscriptionConfirmedPayload struct {
	ToEmail         string `json:"to_email"`
	Name            string `json:"name"`
	ProductName     string `json:"product_name"`
	UnsubscribeLink string `json:"unsubscribe_link"`
}

type UnsubscribedPayload struct {
	ToEmail          string `json:"to_email"`
	Name             string `json:"name"`
	ProductName      string `json:"product_name"`
	SubscriptionLink string `json:"subscription_link"`
}

type PriceChangedPayload struct {
	ToEmail       string     `json:"to_email"`
	Name          string     `json:"name"`
	ProductName   string     `json:"product_name"`
	PreviousPrice float64    `json:"previous_price"`
	NewPrice      float64    `json:"new_price"`
	PriceDiff     float64    `json:"price_diff"`
	ChangeType    ChangeType `json:"change_type"`
	DateChecked   string     `json:"date_checked"`
	ProductLink   string     `json:"product_link"`
}

type ProductRemovedPayload struct {
	ToEmail     string `json:"to_email"`
	Name        string `json:"name"`
	ProductName string `json:"product_name"`
}
