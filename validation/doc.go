// Package validation checks configs and commands and reports failures as
// *errors.AppError values with per-field details.
//
// # Struct Tag Validation
//
//	type AddItem struct {
//	    OrderID  string          `json:"order_id" validate:"required"`
//	    Quantity int             `json:"quantity" validate:"gte=1"`
//	    Price    decimal.Decimal `json:"price" validate:"gte=0"`
//	}
//	err := validation.Validate(cmd)
//
// decimal.Decimal fields are compared as numbers.
//
// # Programmatic Validation
//
//	err := validation.New().
//	    Required("name", cfg.Name).
//	    Min("failure_threshold", cfg.FailureThreshold, 1).
//	    Validate()
package validation
