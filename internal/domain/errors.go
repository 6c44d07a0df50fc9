package domain

import "errors"

var (
	// ErrNotFound covers unknown items and unknown orders. User-visible;
	// aborts the current action.
	ErrNotFound = errors.New("not found")

	// ErrGatewayUnavailable means a network or timeout failure talking to
	// the payment gateway. The webhook intake answers it with a redelivery
	// request; order creation surfaces it to the user.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrEmptyCompletion means the generation backend returned no usable
	// text. Fatal for the calling turn, never retried automatically.
	ErrEmptyCompletion = errors.New("empty completion from generation backend")

	// ErrIngredientLimit signals that an append was rejected because the
	// customization already holds the maximum number of ingredients.
	ErrIngredientLimit = errors.New("ingredient limit reached")
)
