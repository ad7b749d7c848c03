package cache

import "errors"

// ErrInvalidSize is returned when a cache is created with a non-positive capacity.
var ErrInvalidSize = errors.New("cache: size must be positive")
