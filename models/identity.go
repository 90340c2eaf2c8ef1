package models

import "github.com/google/uuid"

// Identity is the authenticated caller, resolved once per request and
// passed explicitly into every service call.
type Identity struct {
	UserID   uuid.UUID
	Username string
}
