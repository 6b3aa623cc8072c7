package dto

import (
	"time"

	"github.com/Additional-Code/parcel/internal/entity"
)

// CourierResponse represents a courier.
type CourierResponse struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Avatar    *FileResponse `json:"avatar,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewCourierResponse maps a courier.
func NewCourierResponse(c *entity.Courier) CourierResponse {
	res := CourierResponse{ID: c.ID, Name: c.Name, Email: c.Email, CreatedAt: c.CreatedAt}
	if c.Avatar != nil {
		f := NewFileResponse(c.Avatar)
		res.Avatar = &f
	}
	return res
}

// RecipientResponse represents a recipient and their address.
type RecipientResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
}

// NewRecipientResponse maps a recipient.
func NewRecipientResponse(r *entity.Recipient) RecipientResponse {
	return RecipientResponse{
		ID:         r.ID,
		Name:       r.Name,
		Street:     r.Street,
		Number:     r.Number,
		Complement: r.Complement,
		City:       r.City,
		State:      r.State,
		Zip:        r.Zip,
	}
}

// FileResponse represents stored file metadata.
type FileResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// NewFileResponse maps file metadata.
func NewFileResponse(f *entity.StoredFile) FileResponse {
	return FileResponse{ID: f.ID, Name: f.Name, Path: f.Path}
}

// IncidentResponse represents a delivery incident.
type IncidentResponse struct {
	ID          int64          `json:"id"`
	OrderID     int64          `json:"order_id"`
	Description string         `json:"description"`
	Order       *OrderResponse `json:"order,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewIncidentResponse maps an incident and its order when loaded.
func NewIncidentResponse(i *entity.Incident) IncidentResponse {
	res := IncidentResponse{ID: i.ID, OrderID: i.OrderID, Description: i.Description, CreatedAt: i.CreatedAt}
	if i.Order != nil {
		o := NewOrderResponse(i.Order)
		res.Order = &o
	}
	return res
}
