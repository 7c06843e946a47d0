package models

import "errors"

// ErrNotFound is returned by lookups that miss, e.g. a detail-page id that is
// not in the loaded collection. Callers render an empty state, not an error.
var ErrNotFound = errors.New("property not found")
