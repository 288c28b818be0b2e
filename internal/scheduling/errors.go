package scheduling

import "errors"

var (
	// ErrIncompleteSelection is returned by Confirm when the caller has not
	// picked both a day and an unbooked time
	ErrIncompleteSelection = errors.New("day and time must be selected before confirming")
)
