package domain

import (
	"github.com/google/uuid"
	"time"
)

// Post represents a submission to a community
type Post struct {
	Id          uuid.UUID
	CommunityId uuid.UUID
	CreatorURI  string
	ObjectURI   string
	Title       string
	Body        string
	URL         string
	Local       bool
	Removed     bool // removed by a moderator
	Deleted     bool // deleted by the creator, or remote tombstone
	Locked      bool
	UpdatedAt   time.Time
	CreatedAt   time.Time
}

// Comment represents a reply to a post or to another comment
type Comment struct {
	Id         uuid.UUID
	PostId     uuid.UUID
	ParentId   uuid.UUID // zero when replying directly to the post
	CreatorURI string
	ObjectURI  string
	Body       string
	Local      bool
	Removed    bool
	Deleted    bool
	UpdatedAt  time.Time
	CreatedAt  time.Time
}

// Vote is a like (+1) or dislike (-1) on a post or comment
type Vote struct {
	Id        uuid.UUID
	ActorURI  string
	ObjectURI string
	Score     int
	CreatedAt time.Time
}

// PrivateMessage is a direct message between two actors
type PrivateMessage struct {
	Id           uuid.UUID
	ObjectURI    string
	CreatorURI   string
	RecipientURI string
	Content      string
	Deleted      bool
	UpdatedAt    time.Time
	CreatedAt    time.Time
}

// Report flags a post or comment for moderator attention
type Report struct {
	Id          uuid.UUID
	ObjectURI   string
	ReporterURI string
	Reason      string
	Resolved    bool
	CreatedAt   time.Time
}
