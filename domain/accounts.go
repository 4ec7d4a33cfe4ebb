package domain

import (
	"github.com/google/uuid"
	"time"
)

// Account represents a local user
type Account struct {
	Id            uuid.UUID
	Username      string
	DisplayName   string
	Summary       string
	Admin         bool
	CreatedAt     time.Time
	WebPublicKey  string
	WebPrivateKey string
}
