package web

import (
	"encoding/json"
	"testing"

	"github.com/okutkin/veche/domain"
	"github.com/okutkin/veche/util"
)

func TestUserIRI(t *testing.T) {
	tests := []struct {
		name   string
		action action
		want   string
	}{
		{"id", id, "https://example.com/users/alice"},
		{"inbox", inbox, "https://example.com/users/alice/inbox"},
		{"outbox", outbox, "https://example.com/users/alice/outbox"},
		{"followers", followers, "https://example.com/users/alice/followers"},
		{"shared inbox", sharedInbox, "https://example.com/inbox"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := userIRI("example.com", "alice", tt.action)
			if got != tt.want {
				t.Errorf("userIRI(%s) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestCommunityIRI(t *testing.T) {
	tests := []struct {
		name   string
		action action
		want   string
	}{
		{"id", id, "https://example.com/c/golang"},
		{"inbox", inbox, "https://example.com/c/golang/inbox"},
		{"outbox", outbox, "https://example.com/c/golang/outbox"},
		{"followers", followers, "https://example.com/c/golang/followers"},
		{"moderators", moderators, "https://example.com/c/golang/moderators"},
		{"shared inbox", sharedInbox, "https://example.com/inbox"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := communityIRI("example.com", "golang", tt.action)
			if got != tt.want {
				t.Errorf("communityIRI(%s) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestCommunityActorDoc(t *testing.T) {
	conf := &util.AppConfig{}
	conf.Conf.SslDomain = "example.com"
	community := &domain.Community{
		Name:         "golang",
		Title:        "Go",
		ActorURI:     "https://example.com/c/golang",
		InboxURI:     "https://example.com/c/golang/inbox",
		FollowersURI: "https://example.com/c/golang/followers",
		Local:        true,
	}

	actor := communityActorDoc(community, conf)

	if actor.Type != "Group" {
		t.Errorf("Expected a Group actor, got %s", actor.Type)
	}
	if actor.ID != community.ActorURI {
		t.Errorf("Unexpected id: %s", actor.ID)
	}
	if actor.Outbox != "https://example.com/c/golang/outbox" {
		t.Errorf("Unexpected outbox: %s", actor.Outbox)
	}
	if actor.AttributedTo != "https://example.com/c/golang/moderators" {
		t.Errorf("Group should point at its moderator collection, got %s", actor.AttributedTo)
	}
	if actor.Endpoints.SharedInbox != "https://example.com/inbox" {
		t.Errorf("Unexpected shared inbox: %s", actor.Endpoints.SharedInbox)
	}
	if actor.PublicKey.Owner != community.ActorURI {
		t.Errorf("Key owner should be the group id, got %s", actor.PublicKey.Owner)
	}
}

func TestEmptyCollection(t *testing.T) {
	result := emptyCollection("https://example.com/users/alice/outbox")

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(result), &data); err != nil {
		t.Fatalf("emptyCollection should produce valid JSON: %v", err)
	}
	if data["type"] != "OrderedCollection" {
		t.Errorf("Expected OrderedCollection, got %v", data["type"])
	}
	if data["id"] != "https://example.com/users/alice/outbox" {
		t.Errorf("Unexpected id %v", data["id"])
	}
	if data["totalItems"] != float64(0) {
		t.Errorf("Expected 0 items, got %v", data["totalItems"])
	}
}
