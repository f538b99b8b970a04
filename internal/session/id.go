package session

import (
	"strings"

	"github.com/google/uuid"
)

// NewID mints a random session identifier.
func NewID() string {
	return uuid.NewString()
}

// NormalizeID validates id as a UUID and returns its canonical form.
func NormalizeID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > 64 {
		return "", false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
