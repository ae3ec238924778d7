package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrDuplicate indicates a write collided with a uniqueness constraint
// (username, or a second verified account for one email).
var ErrDuplicate = errors.New("repository: duplicate")
