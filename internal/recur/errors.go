package recur

import "errors"

var (
	// ErrInvalidEventDefinition marks a malformed event: bad start date,
	// empty name, or a frequency that is not a positive whole number of days.
	ErrInvalidEventDefinition = errors.New("invalid event definition")

	// ErrInvalidArgument marks a bad call argument, such as a negative
	// occurrence count or a reference date before the event starts.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidDate is returned by the date parsers. Event construction
	// wraps it together with ErrInvalidEventDefinition.
	ErrInvalidDate = errors.New("invalid date")
)
