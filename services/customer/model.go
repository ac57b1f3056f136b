package customer

import (
	"encoding/json"
	"strings"
)

// Record is one commerce customer keyed by lower-cased email.
type Record struct {
	Email      string     `json:"emailAddress"`
	TotalSpend float64    `json:"totalSpend"`
	OrderCount int        `json:"orderCount"`
	Items      []LineItem `json:"items,omitempty"`
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Email       string     `json:"emailAddress"`
		TotalSpend  *float64   `json:"totalSpend"`
		OrderCount  *float64   `json:"orderCount"`
		TotalOrders *float64   `json:"totalOrders"`
		Items       []LineItem `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Record{
		Email: strings.ToLower(strings.TrimSpace(raw.Email)),
		Items: raw.Items,
	}
	if raw.TotalSpend != nil && *raw.TotalSpend > 0 {
		r.TotalSpend = *raw.TotalSpend
	}
	count := raw.OrderCount
	if count == nil {
		count = raw.TotalOrders
	}
	if count != nil && *count > 0 {
		r.OrderCount = int(*count)
	}
	return nil
}

type LineItem struct {
	ProductName string  `json:"productName"`
	VariantName string  `json:"variantName"`
	Quantity    int     `json:"quantity"`
	Amount      float64 `json:"lineTotal"`
	ProductID   string  `json:"productId"`
}

func (li *LineItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		ProductName string   `json:"productName"`
		VariantName string   `json:"variantName"`
		Quantity    *float64 `json:"quantity"`
		LineTotal   *float64 `json:"lineTotal"`
		Amount      *float64 `json:"amount"`
		ProductID   string   `json:"productId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*li = LineItem{
		ProductName: raw.ProductName,
		VariantName: raw.VariantName,
		Quantity:    1,
		ProductID:   raw.ProductID,
	}
	if raw.Quantity != nil {
		li.Quantity = int(*raw.Quantity)
	}
	switch {
	case raw.LineTotal != nil:
		li.Amount = *raw.LineTotal
	case raw.Amount != nil:
		li.Amount = *raw.Amount
	}
	return nil
}

type Order struct {
	ID            string     `json:"id"`
	CustomerEmail string     `json:"customerEmail"`
	Status        string     `json:"status"`
	Items         []LineItem `json:"items"`
}

var paidStatuses = map[string]bool{
	"completed": true,
	"delivered": true,
	"paid":      true,
	"success":   true,
	"fulfilled": true,
}

func (o Order) Paid() bool {
	return paidStatuses[strings.ToLower(o.Status)]
}

// Page is the commerce API list envelope.
type Page[T any] struct {
	Success bool `json:"success"`
	Data    []T  `json:"data"`
	Pages   int  `json:"pages"`
}

// ProductNames flattens line items into the names used for product matching.
func ProductNames(items []LineItem) []string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		if it.ProductName != "" {
			names = append(names, it.ProductName)
		}
	}
	return names
}
