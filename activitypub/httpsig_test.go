package activitypub

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"strings"
	"testing"
)

// generateTestKeyPair generates an RSA key pair for testing
func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})
	return privateKey, string(pubPEM)
}

// privateKeyToPEM converts private key to PEM string
func privateKeyToPEM(key *rsa.PrivateKey) string {
	keyBytes := x509.MarshalPKCS1PrivateKey(key)
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: keyBytes,
	})
	return string(keyPEM)
}

// signedTestRequest builds a signed POST carrying the given body
func signedTestRequest(t *testing.T, key *rsa.PrivateKey, keyId string, body []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "https://remote.example/inbox", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	PrepareRequestHeaders(req, body)

	if err := SignRequest(req, key, keyId); err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}
	return req
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	key, pubPEM := generateTestKeyPair(t)
	keyId := "https://local.example/users/alice#main-key"
	body := []byte(`{"type":"Follow"}`)

	req := signedTestRequest(t, key, keyId, body)

	actorURI, err := VerifyRequest(req, pubPEM)
	if err != nil {
		t.Fatalf("VerifyRequest failed: %v", err)
	}
	if actorURI != "https://local.example/users/alice" {
		t.Errorf("Expected actor URI without fragment, got %s", actorURI)
	}
}

func TestVerifyRequestWrongKey(t *testing.T) {
	key, _ := generateTestKeyPair(t)
	_, otherPubPEM := generateTestKeyPair(t)

	req := signedTestRequest(t, key, "https://local.example/users/alice#main-key", []byte("{}"))

	_, err := VerifyRequest(req, otherPubPEM)
	if err == nil {
		t.Fatal("Expected verification to fail with a different key")
	}
	if !strings.Contains(err.Error(), "invalid http signature") {
		t.Errorf("Expected signature error, got: %v", err)
	}
}

func TestVerifyRequestTamperedDate(t *testing.T) {
	key, pubPEM := generateTestKeyPair(t)

	req := signedTestRequest(t, key, "https://local.example/users/alice#main-key", []byte("{}"))
	req.Header.Set("Date", "Thu, 01 Jan 1970 00:00:00 GMT")

	if _, err := VerifyRequest(req, pubPEM); err == nil {
		t.Error("Expected verification to fail after changing a signed header")
	}
}

func TestVerifyDigest(t *testing.T) {
	body := []byte(`{"type":"Follow"}`)
	req, _ := http.NewRequest(http.MethodPost, "https://remote.example/inbox", bytes.NewReader(body))
	PrepareRequestHeaders(req, body)

	if err := VerifyDigest(req, body); err != nil {
		t.Fatalf("VerifyDigest failed on an untouched body: %v", err)
	}
	if err := VerifyDigest(req, []byte(`{"type":"Delete"}`)); err == nil {
		t.Error("Expected a mismatch for a different body")
	}

	req.Header.Del("Digest")
	if err := VerifyDigest(req, body); err == nil {
		t.Error("Expected an error without a digest header")
	}
}

func TestVerifyRequestUnsignedRequest(t *testing.T) {
	_, pubPEM := generateTestKeyPair(t)

	req, _ := http.NewRequest(http.MethodPost, "https://remote.example/inbox", nil)
	if _, err := VerifyRequest(req, pubPEM); err == nil {
		t.Error("Expected verification to fail without a signature header")
	}
}

func TestSignRequestNilKey(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://remote.example/inbox", nil)
	err := SignRequest(req, nil, "https://local.example/users/alice#main-key")
	if err == nil {
		t.Error("Expected error for nil private key")
	}
}

func TestPrepareRequestHeaders(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	req, _ := http.NewRequest(http.MethodPost, "https://remote.example/inbox", bytes.NewReader(body))

	PrepareRequestHeaders(req, body)

	for _, header := range []string{"Content-Type", "Date", "Host", "Digest", "User-Agent"} {
		if req.Header.Get(header) == "" {
			t.Errorf("Header %s should be set", header)
		}
	}
	if !strings.HasPrefix(req.Header.Get("Digest"), "SHA-256=") {
		t.Errorf("Digest should use SHA-256, got %s", req.Header.Get("Digest"))
	}
}

func TestParsePrivateKeyRoundTrip(t *testing.T) {
	key, _ := generateTestKeyPair(t)

	parsed, err := ParsePrivateKey(privateKeyToPEM(key))
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Error("Parsed key doesn't match original")
	}
}

func TestParsePrivateKeyInvalidPEM(t *testing.T) {
	if _, err := ParsePrivateKey("not a valid PEM"); err == nil {
		t.Error("Expected error for invalid PEM")
	}
}

func TestParsePublicKeyInvalidPEM(t *testing.T) {
	if _, err := ParsePublicKey(""); err == nil {
		t.Error("Expected error for empty PEM")
	}
}
