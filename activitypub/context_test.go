package activitypub

import (
	"net/url"
	"testing"
)

func checkApubURL(t *testing.T, ctx *Context, rawURL string) error {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("Failed to parse %q: %v", rawURL, err)
	}
	return CheckApubID(ctx, u)
}

func TestCheckApubID(t *testing.T) {
	ctx, _ := newTestContext()

	cases := []struct {
		name string
		uri  string
		ok   bool
	}{
		{"remote https", "https://remote.example/users/bob", true},
		{"local always admitted", "https://local.example/users/alice", true},
		{"localhost", "https://localhost/users/bob", false},
		{"raw ipv4", "https://127.0.0.1/users/bob", false},
		{"raw ipv6", "https://[::1]/users/bob", false},
		{"bad scheme", "ftp://remote.example/users/bob", false},
		{"no host", "https:///users/bob", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkApubURL(t, ctx, tc.uri)
			if tc.ok && err != nil {
				t.Errorf("%s should be admitted: %v", tc.uri, err)
			}
			if !tc.ok && err == nil {
				t.Errorf("%s should be rejected", tc.uri)
			}
		})
	}
}

func TestCheckApubIDBlocklist(t *testing.T) {
	ctx, _ := newTestContext()
	ctx.Conf.Conf.Federation.BlockedInstances = []string{"spam.example"}

	if err := checkApubURL(t, ctx, "https://spam.example/users/eve"); err == nil {
		t.Error("Blocklisted instance should be rejected")
	}
	if err := checkApubURL(t, ctx, "https://remote.example/users/bob"); err != nil {
		t.Errorf("Unlisted instance should pass: %v", err)
	}
}

func TestCheckApubIDAllowlist(t *testing.T) {
	ctx, _ := newTestContext()
	ctx.Conf.Conf.Federation.AllowedInstances = []string{"friend.example"}

	if err := checkApubURL(t, ctx, "https://friend.example/users/bob"); err != nil {
		t.Errorf("Allowlisted instance should pass: %v", err)
	}
	if err := checkApubURL(t, ctx, "https://remote.example/users/bob"); err == nil {
		t.Error("With an allowlist set, everything else is rejected")
	}
	if err := checkApubURL(t, ctx, "https://local.example/users/alice"); err != nil {
		t.Errorf("Local ids bypass the allowlist: %v", err)
	}
}

func TestCheckApubIDFederationDisabled(t *testing.T) {
	ctx, _ := newTestContext()
	ctx.Conf.Conf.WithAp = false

	if err := checkApubURL(t, ctx, "https://remote.example/users/bob"); err == nil {
		t.Error("Remote ids are rejected with federation off")
	}
	if err := checkApubURL(t, ctx, "https://local.example/users/alice"); err != nil {
		t.Errorf("Local ids still pass with federation off: %v", err)
	}
}

func TestIsLocalURI(t *testing.T) {
	ctx, _ := newTestContext()

	if !ctx.IsLocalURI("https://local.example/users/alice") {
		t.Error("Same host should be local")
	}
	if !ctx.IsLocalURI("https://local.example:443/users/alice") {
		t.Error("Port difference should not matter")
	}
	if !ctx.IsLocalURI("https://LOCAL.example/c/golang") {
		t.Error("Host comparison is case insensitive")
	}
	if ctx.IsLocalURI("https://remote.example/users/bob") {
		t.Error("Other hosts are not local")
	}
	if ctx.IsLocalURI("::bad::") {
		t.Error("Unparseable uris are not local")
	}
}

func TestActorAndCommunityURIs(t *testing.T) {
	ctx, _ := newTestContext()

	if got := ctx.ActorURI("alice"); got != "https://local.example/users/alice" {
		t.Errorf("ActorURI: %q", got)
	}
	if got := ctx.CommunityURI("golang"); got != "https://local.example/c/golang" {
		t.Errorf("CommunityURI: %q", got)
	}

	first := ctx.NewObjectURI("activities")
	second := ctx.NewObjectURI("activities")
	if first == second {
		t.Error("Minted ids must be unique")
	}
}
