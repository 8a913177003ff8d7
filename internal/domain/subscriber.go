package domain

import "time"

// Subscriber is one email address watching one product. ProductName and
// ProductURL are copied from the product when the subscription is made.
type Subscriber struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	Email        string    `json:"email_address"`
	Name         string    `json:"name"`
	ProductName  string    `json:"product_name"`
	ProductURL   string    `json:"product_url"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

type SubscribeRequest struct {
	Email string `json:"email_address"`
	Name  string `json:"name"`
}

type UnsubscribeRequest struct {
	Email string `json:"email_address"`
}
