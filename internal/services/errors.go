package services

import "errors"

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrCartLineNotFound = errors.New("product is not in the cart")
	ErrInvalidProduct   = errors.New("invalid product")
	ErrInvalidCampaign  = errors.New("invalid campaign")
	ErrInvalidReview    = errors.New("invalid review")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrOutOfStock       = errors.New("product is out of stock")
	ErrCartEmpty        = errors.New("cart is empty")
	ErrInvalidCart      = errors.New("invalid cart id")
)

// ValidationError pairs a service sentinel (ErrInvalidProduct and friends) with
// the field-level cause. errors.Is matches both.
type ValidationError struct {
	Kind error
	Err  error
}

func (e *ValidationError) Error() string {
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func invalid(kind, err error) error {
	return &ValidationError{Kind: kind, Err: err}
}
