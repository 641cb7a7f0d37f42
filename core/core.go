package core

import "github.com/google/uuid"

// NewID generates a unique identifier for turns and transcript entries.
func NewID() string { return uuid.NewString() }
