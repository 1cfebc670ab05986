package cart

import "github.com/google/uuid"

type addItemRequest struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required"`
}

// updateQuantityRequest sets an exact quantity; zero removes the line.
type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}
