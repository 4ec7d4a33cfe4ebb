package activitypub

// PublicURI addresses an activity to the world, per ActivityStreams.
const PublicURI = "https://www.w3.org/ns/activitystreams#Public"

// ActorResponse represents the JSON structure of an ActivityPub actor,
// either a Person or a Group (community)
type ActorResponse struct {
	Context           interface{} `json:"@context,omitempty"`
	ID                string      `json:"id"`
	Type              string      `json:"type"`
	PreferredUsername string      `json:"preferredUsername"`
	Name              string      `json:"name,omitempty"`
	Summary           string      `json:"summary,omitempty"`
	AttributedTo      string      `json:"attributedTo,omitempty"`
	Inbox             string      `json:"inbox"`
	Outbox            string      `json:"outbox,omitempty"`
	Followers         string      `json:"followers,omitempty"`
	Endpoints         struct {
		SharedInbox string `json:"sharedInbox,omitempty"`
	} `json:"endpoints,omitempty"`
	PublicKey struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// PageObject is a post as it travels over the wire
type PageObject struct {
	Context         interface{} `json:"@context,omitempty"`
	ID              string      `json:"id"`
	Type            string      `json:"type"`
	AttributedTo    string      `json:"attributedTo"`
	To              []string    `json:"to,omitempty"`
	Cc              []string    `json:"cc,omitempty"`
	Audience        string      `json:"audience,omitempty"`
	Name            string      `json:"name"`
	Content         string      `json:"content,omitempty"`
	URL             string      `json:"url,omitempty"`
	CommentsEnabled *bool       `json:"commentsEnabled,omitempty"`
	Published       string      `json:"published,omitempty"`
	Updated         string      `json:"updated,omitempty"`
}

// NoteObject is a comment
type NoteObject struct {
	Context      interface{} `json:"@context,omitempty"`
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	AttributedTo string      `json:"attributedTo"`
	To           []string    `json:"to,omitempty"`
	Cc           []string    `json:"cc,omitempty"`
	Audience     string      `json:"audience,omitempty"`
	InReplyTo    string      `json:"inReplyTo"`
	Content      string      `json:"content"`
	Published    string      `json:"published,omitempty"`
	Updated      string      `json:"updated,omitempty"`
}

// ChatMessageObject is a private message. The type comes from the
// Litepub extension and is addressed to exactly one actor.
type ChatMessageObject struct {
	Context      interface{} `json:"@context,omitempty"`
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	AttributedTo string      `json:"attributedTo"`
	To           []string    `json:"to"`
	Content      string      `json:"content"`
	Published    string      `json:"published,omitempty"`
	Updated      string      `json:"updated,omitempty"`
}

// TombstoneObject marks a deleted object
type TombstoneObject struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	FormerType string `json:"formerType,omitempty"`
}

// WebfingerResponse is the body of a .well-known/webfinger lookup
type WebfingerResponse struct {
	Subject string          `json:"subject"`
	Links   []WebfingerLink `json:"links"`
}

type WebfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href,omitempty"`
}
