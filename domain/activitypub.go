package domain

import (
	"github.com/google/uuid"
	"time"
)

// RemoteAccount represents a cached federated user
type RemoteAccount struct {
	Id             uuid.UUID
	Username       string
	Domain         string
	ActorURI       string
	DisplayName    string
	Summary        string
	InboxURI       string
	SharedInboxURI string
	PublicKeyPem   string
	Deleted        bool
	LastFetchedAt  time.Time
}

// Follow represents a follow relationship between two actors, either of
// which may be local. For community follows the target is the community.
type Follow struct {
	Id        uuid.UUID
	ActorURI  string // the follower
	TargetURI string // the actor being followed
	URI       string // ActivityPub Follow activity URI
	Accepted  bool
	Pending   bool
	CreatedAt time.Time
}

// Ban records a community-level ban of an actor
type Ban struct {
	Id          uuid.UUID
	CommunityId uuid.UUID
	ActorURI    string
	CreatedAt   time.Time
}

// Activity represents a received or sent ActivityPub activity
// (kept for deduplication under at-least-once delivery)
type Activity struct {
	Id           uuid.UUID
	ActivityURI  string
	ActivityType string // Follow, Create, Like, Announce, Undo, etc.
	ActorURI     string
	ObjectURI    string
	RawJSON      string
	Local        bool // true if originated from this server
	CreatedAt    time.Time
}

// DeliveryQueueItem is one (activity, destination inbox) pair pending delivery
type DeliveryQueueItem struct {
	Id           uuid.UUID
	ActivityURI  string
	InboxURI     string
	SenderURI    string
	ActivityJSON string // the complete serialized activity
	PrivateKey   string // PEM of the sending actor
	Attempts     int
	NextRetryAt  time.Time
	CreatedAt    time.Time
}

// DeadDelivery records a delivery that exhausted its retries
type DeadDelivery struct {
	Id          uuid.UUID
	ActivityURI string
	InboxURI    string
	Attempts    int
	LastError   string
	CreatedAt   time.Time
}

// RemoteInstance tracks a federated server seen during actor fetches
type RemoteInstance struct {
	Id          uuid.UUID
	Domain      string
	Software    string
	Version     string
	LastAliveAt time.Time
	CreatedAt   time.Time
}
