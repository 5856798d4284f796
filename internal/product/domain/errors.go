package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidCode          = errors.New("invalid_code")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidPrice         = errors.New("invalid_price")
	ErrInvalidPromoPrice    = errors.New("invalid_promo_price")
	ErrInvalidSizes         = errors.New("invalid_sizes")
	ErrInvalidColors        = errors.New("invalid_colors")
	ErrPromoPriceRequired   = errors.New("promo_price_required")
	ErrProductInactive      = errors.New("product_inactive")
	ErrConfirmationRequired = errors.New("confirmation_required")
	ErrNotFound             = errors.New("not_found")
)

// StageError names the workflow stage that stopped a product mutation.
type StageError struct {
	Op    string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("product %s: %s: %v", e.Op, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
