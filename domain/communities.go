package domain

import (
	"github.com/google/uuid"
	"time"
)

// Community represents a group actor, local or federated in
type Community struct {
	Id            uuid.UUID
	Name          string
	Title         string
	Description   string
	Domain        string
	ActorURI      string
	InboxURI      string
	FollowersURI  string
	Local         bool
	Removed       bool
	Deleted       bool
	PublicKeyPem  string
	PrivateKeyPem string // empty for remote communities
	LastFetchedAt time.Time
	CreatedAt     time.Time
}

// CommunityModerator links an account (local or remote) to a community it moderates
type CommunityModerator struct {
	Id          uuid.UUID
	CommunityId uuid.UUID
	ActorURI    string
	CreatedAt   time.Time
}
