package web

import (
	"encoding/json"
	"testing"

	"github.com/okutkin/veche/activitypub"
)

func TestGetWebFingerNotFound(t *testing.T) {
	result := GetWebFingerNotFound()
	expected := `{"detail":"Not Found"}`

	if result != expected {
		t.Errorf("Expected %s, got %s", expected, result)
	}

	var jsonMap map[string]interface{}
	if err := json.Unmarshal([]byte(result), &jsonMap); err != nil {
		t.Error("Result should be valid JSON")
	}
	if jsonMap["detail"] != "Not Found" {
		t.Error("JSON should contain 'detail' field with 'Not Found'")
	}
}

func TestWebfingerResponseShape(t *testing.T) {
	response := activitypub.WebfingerResponse{
		Subject: "acct:alice@example.com",
		Links: []activitypub.WebfingerLink{
			{
				Rel:  "self",
				Type: activitypub.ContentType,
				Href: "https://example.com/users/alice",
			},
		},
	}

	data, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Round trip failed: %v", err)
	}
	if decoded["subject"] != "acct:alice@example.com" {
		t.Errorf("Unexpected subject %v", decoded["subject"])
	}

	links, ok := decoded["links"].([]interface{})
	if !ok || len(links) != 1 {
		t.Fatalf("Expected 1 link, got %v", decoded["links"])
	}
	link := links[0].(map[string]interface{})
	if link["rel"] != "self" || link["type"] != activitypub.ContentType {
		t.Errorf("Unexpected self link %v", link)
	}
	if link["href"] != "https://example.com/users/alice" {
		t.Errorf("Unexpected href %v", link["href"])
	}
}
