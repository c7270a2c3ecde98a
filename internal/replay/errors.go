package replay

import "errors"

// ErrOutOfOrder is returned when events are not in deterministic replay order.
var ErrOutOfOrder = errors.New("events are not in deterministic order")
