package core

import "errors"

// Errors
var (
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrDuplicateOrderID = errors.New("duplicate order id")
	ErrUnknownOrder     = errors.New("unknown order")
)
