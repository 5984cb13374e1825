package markov

import "errors"

var (
	// ErrEmptyText is returned when a model is constructed from an empty string.
	ErrEmptyText = errors.New("markov: training text must not be empty")
	// ErrInvalidOrder is returned when the order is not positive or exceeds the
	// length of the training text.
	ErrInvalidOrder = errors.New("markov: invalid order")
	// ErrInvalidLength is returned when a k-gram, a repair context or a
	// requested output length does not have the length the operation requires.
	ErrInvalidLength = errors.New("markov: invalid argument length")
	// ErrInvalidTemperature is returned when generation is asked to sample at a
	// temperature that is not a number.
	ErrInvalidTemperature = errors.New("markov: invalid temperature")
	// ErrInsufficientContext is returned by ReplaceUnknown when an Unknown marker
	// sits within `order` runes of either end of the input.
	ErrInsufficientContext = errors.New("markov: insufficient context around unknown marker")
	// ErrReservedRune is returned when training text contains the Unknown marker.
	ErrReservedRune = errors.New("markov: training text contains the unknown marker")
	// ErrCorruptModel is returned when imported or stored counts break the model invariants.
	ErrCorruptModel = errors.New("markov: corrupt model data")
	// ErrModelNotFound is returned by the Store when no model has the requested name.
	ErrModelNotFound = errors.New("markov: model not found")
)
