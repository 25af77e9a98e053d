package core

import "github.com/google/uuid"

// NewID returns a random identifier. No uniqueness check is made against
// existing records; v4 collisions are not a practical concern.
func NewID() string {
	return uuid.NewString()
}
