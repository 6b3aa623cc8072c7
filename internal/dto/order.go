package dto

import (
	"time"

	"github.com/Additional-Code/parcel/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              int64              `json:"id"`
	Product         string             `json:"product"`
	State           entity.OrderState  `json:"state"`
	CourierID       int64              `json:"courier_id"`
	RecipientID     int64              `json:"recipient_id"`
	PickedUpAt      *time.Time         `json:"picked_up_at,omitempty"`
	DeliveredAt     *time.Time         `json:"delivered_at,omitempty"`
	CanceledAt      *time.Time         `json:"canceled_at,omitempty"`
	SignatureFileID *int64             `json:"signature_id,omitempty"`
	Courier         *CourierResponse   `json:"courier,omitempty"`
	Recipient       *RecipientResponse `json:"recipient,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// NewOrderResponse maps an order and any loaded parties.
func NewOrderResponse(o *entity.Order) OrderResponse {
	res := OrderResponse{
		ID:              o.ID,
		Product:         o.Product,
		State:           o.State(),
		CourierID:       o.CourierID,
		RecipientID:     o.RecipientID,
		PickedUpAt:      o.PickedUpAt,
		DeliveredAt:     o.DeliveredAt,
		CanceledAt:      o.CanceledAt,
		SignatureFileID: o.SignatureFileID,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.Courier != nil {
		c := NewCourierResponse(o.Courier)
		res.Courier = &c
	}
	if o.Recipient != nil {
		r := NewRecipientResponse(o.Recipient)
		res.Recipient = &r
	}
	return res
}

// NewOrderResponses maps a slice of orders.
func NewOrderResponses(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}
