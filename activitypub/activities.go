package activitypub

import (
	"encoding/json"
	"fmt"
)

// ActivityContext is the JSON-LD context attached to outgoing activities
var ActivityContext = []string{
	"https://www.w3.org/ns/activitystreams",
	"https://w3id.org/security/v1",
}

// Envelope is the common frame of every incoming or outgoing activity.
// The object stays raw until the handler for the activity type decides
// what shape to decode it into.
type Envelope struct {
	Context json.RawMessage `json:"@context,omitempty"`
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Actor   string          `json:"actor"`
	To      []string        `json:"to,omitempty"`
	Cc      []string        `json:"cc,omitempty"`
	Target  string          `json:"target,omitempty"`
	Summary string          `json:"summary,omitempty"`
	Object  json.RawMessage `json:"object,omitempty"`

	raw []byte
}

// ParseActivity decodes the envelope of an activity and checks that the
// fields every activity must carry are present
func ParseActivity(body []byte) (error, *Envelope) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("parse activity: %w", err), nil
	}
	if env.ID == "" || env.Type == "" || env.Actor == "" {
		return fmt.Errorf("parse activity: missing id, type or actor"), nil
	}
	env.raw = body
	return nil, &env
}

// Raw returns the original bytes the envelope was parsed from, or a
// fresh marshalling for envelopes built locally
func (env *Envelope) Raw() []byte {
	if env.raw != nil {
		return env.raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil
	}
	env.raw = data
	return data
}

// ObjectURI returns the id of the activity's object, whether the object
// is a bare URI string or an embedded JSON object
func (env *Envelope) ObjectURI() string {
	if len(env.Object) == 0 {
		return ""
	}
	var uri string
	if err := json.Unmarshal(env.Object, &uri); err == nil {
		return uri
	}
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Object, &ref); err == nil {
		return ref.ID
	}
	return ""
}

// InnerEnvelope decodes the object as an embedded activity, as carried
// by Undo, Accept, Reject and Announce
func (env *Envelope) InnerEnvelope() (error, *Envelope) {
	if len(env.Object) == 0 {
		return fmt.Errorf("%s %s: no embedded activity", env.Type, env.ID), nil
	}
	var inner Envelope
	if err := json.Unmarshal(env.Object, &inner); err != nil {
		return fmt.Errorf("%s %s: embedded activity: %w", env.Type, env.ID, err), nil
	}
	if inner.Type == "" {
		return fmt.Errorf("%s %s: embedded activity has no type", env.Type, env.ID), nil
	}
	inner.raw = env.Object
	return nil, &inner
}

// DecodeObject unmarshals the embedded object into the given shape
func (env *Envelope) DecodeObject(out interface{}) error {
	if len(env.Object) == 0 {
		return fmt.Errorf("%s %s: no object", env.Type, env.ID)
	}
	return json.Unmarshal(env.Object, out)
}

// ObjectType peeks at the type of the embedded object without
// committing to a shape
func (env *Envelope) ObjectType() string {
	var ref struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(env.Object, &ref); err != nil {
		return ""
	}
	return ref.Type
}

// IsPublic reports whether the activity is addressed to the public
// collection
func (env *Envelope) IsPublic() bool {
	for _, uri := range env.To {
		if uri == PublicURI {
			return true
		}
	}
	for _, uri := range env.Cc {
		if uri == PublicURI {
			return true
		}
	}
	return false
}
