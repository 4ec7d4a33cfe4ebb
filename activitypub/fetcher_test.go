package activitypub

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
)

// gone marks a path that answers 410
type gone struct{}

// newApubServer serves the documents registered in docs by path.
// Entries are added after the server starts so ids can embed its URL.
func newApubServer(docs map[string]interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc, ok := docs[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if _, isGone := doc.(gone); isGone {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", ContentType)
		if err := json.NewEncoder(w).Encode(doc); err != nil {
			panic(err)
		}
	}))
}

func personDoc(actorURI string) ActorResponse {
	actor := ActorResponse{
		ID:                actorURI,
		Type:              "Person",
		PreferredUsername: "someone",
		Inbox:             actorURI + "/inbox",
	}
	actor.PublicKey.ID = actorURI + "#main-key"
	actor.PublicKey.Owner = actorURI
	actor.PublicKey.PublicKeyPem = "-----BEGIN PUBLIC KEY-----\nfake\n-----END PUBLIC KEY-----"
	return actor
}

func groupDoc(actorURI, name string) ActorResponse {
	actor := ActorResponse{
		ID:                actorURI,
		Type:              "Group",
		PreferredUsername: name,
		Inbox:             actorURI + "/inbox",
		Followers:         actorURI + "/followers",
	}
	actor.PublicKey.PublicKeyPem = "-----BEGIN PUBLIC KEY-----\nfake\n-----END PUBLIC KEY-----"
	return actor
}

func TestRequestCounterBudget(t *testing.T) {
	counter := &RequestCounter{limit: 3}

	for i := 0; i < 3; i++ {
		if err := counter.Tick(); err != nil {
			t.Fatalf("Tick %d should succeed: %v", i+1, err)
		}
	}

	err := counter.Tick()
	if err == nil {
		t.Fatal("Tick over the limit should fail")
	}
	if !errors.Is(err, ErrRequestLimit) {
		t.Errorf("Expected ErrRequestLimit, got %v", err)
	}
}

func TestResolveActorUsesFreshCache(t *testing.T) {
	ctx, store := newTestContext()
	cached := &domain.RemoteAccount{
		Id:            uuid.New(),
		ActorURI:      "https://remote.example/users/bob",
		InboxURI:      "https://remote.example/users/bob/inbox",
		LastFetchedAt: time.Now(),
	}
	store.remotes[cached.ActorURI] = cached

	counter := ctx.NewCounter()
	err, acc := NewFetcher(ctx).ResolveActor(cached.ActorURI, counter)
	if err != nil {
		t.Fatalf("ResolveActor failed: %v", err)
	}
	if acc != cached {
		t.Error("Fresh cache entry should be returned without a fetch")
	}
	if counter.Count() != 0 {
		t.Errorf("No fetch budget should be spent, used %d", counter.Count())
	}
}

func TestResolveActorFetchesAndCaches(t *testing.T) {
	ctx, store := newTestContext()
	docs := make(map[string]interface{})
	srv := newApubServer(docs)
	defer srv.Close()

	actorURI := srv.URL + "/users/bob"
	docs["/users/bob"] = personDoc(actorURI)

	err, acc := NewFetcher(ctx).ResolveActor(actorURI, ctx.NewCounter())
	if err != nil {
		t.Fatalf("ResolveActor failed: %v", err)
	}
	if acc.Username != "someone" {
		t.Errorf("Expected username from document, got %s", acc.Username)
	}
	if store.remotes[actorURI] == nil {
		t.Error("Fetched actor should be cached")
	}
	if len(store.alive) == 0 {
		t.Error("Actor's instance should be marked alive")
	}
}

func TestResolveActorFetchesNodeinfo(t *testing.T) {
	ctx, store := newTestContext()
	docs := make(map[string]interface{})
	srv := newApubServer(docs)
	defer srv.Close()

	actorURI := srv.URL + "/users/bob"
	docs["/users/bob"] = personDoc(actorURI)
	docs["/.well-known/nodeinfo"] = map[string]interface{}{
		"links": []map[string]string{{
			"rel":  "http://nodeinfo.diaspora.software/ns/schema/2.0",
			"href": srv.URL + "/nodeinfo/2.0",
		}},
	}
	docs["/nodeinfo/2.0"] = map[string]interface{}{
		"version": "2.0",
		"software": map[string]string{
			"name":    "veche",
			"version": "0.2.1",
		},
	}

	counter := ctx.NewCounter()
	if err, _ := NewFetcher(ctx).ResolveActor(actorURI, counter); err != nil {
		t.Fatalf("ResolveActor failed: %v", err)
	}
	if counter.Count() != 1 {
		t.Errorf("Nodeinfo must not spend the fetch budget, used %d", counter.Count())
	}

	u, _ := url.Parse(srv.URL)
	err, inst := store.ReadInstanceByDomain(u.Hostname())
	if err != nil || inst == nil {
		t.Fatal("Instance record should exist after first contact")
	}
	if inst.Software != "veche" || inst.Version != "0.2.1" {
		t.Errorf("Expected software from nodeinfo, got %q %q", inst.Software, inst.Version)
	}
	if inst.LastAliveAt.IsZero() {
		t.Error("First contact should mark the instance alive")
	}
}

func TestResolveActorGone(t *testing.T) {
	ctx, store := newTestContext()
	docs := make(map[string]interface{})
	srv := newApubServer(docs)
	defer srv.Close()

	actorURI := srv.URL + "/users/ghost"
	docs["/users/ghost"] = gone{}

	err, _ := NewFetcher(ctx).ResolveActor(actorURI, ctx.NewCounter())
	if !errors.Is(err, ErrObjectDeleted) {
		t.Fatalf("Expected ErrObjectDeleted, got %v", err)
	}
	if acc := store.remotes[actorURI]; acc == nil || !acc.Deleted {
		t.Error("Gone actor should be tombstoned")
	}
}

func TestResolveActorLocal(t *testing.T) {
	ctx, store := newTestContext()
	store.accounts["alice"] = &domain.Account{
		Id:           uuid.New(),
		Username:     "alice",
		WebPublicKey: "pubkey",
	}

	counter := ctx.NewCounter()
	err, acc := NewFetcher(ctx).ResolveActor("https://local.example/users/alice", counter)
	if err != nil {
		t.Fatalf("ResolveActor failed: %v", err)
	}
	if acc.Username != "alice" || acc.PublicKeyPem != "pubkey" {
		t.Error("Local actor should be served from the accounts table")
	}
	if counter.Count() != 0 {
		t.Error("Local resolution must not spend fetch budget")
	}
}

func TestResolveCommunityRejectsPerson(t *testing.T) {
	ctx, _ := newTestContext()
	docs := make(map[string]interface{})
	srv := newApubServer(docs)
	defer srv.Close()

	actorURI := srv.URL + "/users/bob"
	docs["/users/bob"] = personDoc(actorURI)

	err, _ := NewFetcher(ctx).ResolveCommunity(actorURI, ctx.NewCounter())
	if err == nil {
		t.Fatal("Resolving a Person as a community should fail")
	}
}

func TestResolveCommentChain(t *testing.T) {
	ctx, store := newTestContext()
	docs := make(map[string]interface{})
	srv := newApubServer(docs)
	defer srv.Close()

	communityURI := srv.URL + "/c/golang"
	authorURI := srv.URL + "/users/bob"
	postURI := srv.URL + "/post/1"
	docs["/c/golang"] = groupDoc(communityURI, "golang")
	docs["/users/bob"] = personDoc(authorURI)
	docs["/post/1"] = PageObject{
		ID:           postURI,
		Type:         "Page",
		AttributedTo: authorURI,
		Audience:     communityURI,
		Name:         "A post",
	}
	docs["/comment/1"] = NoteObject{
		ID:           srv.URL + "/comment/1",
		Type:         "Note",
		AttributedTo: authorURI,
		InReplyTo:    postURI,
		Content:      "first",
	}
	docs["/comment/2"] = NoteObject{
		ID:           srv.URL + "/comment/2",
		Type:         "Note",
		AttributedTo: authorURI,
		InReplyTo:    srv.URL + "/comment/1",
		Content:      "second",
	}

	err, comment := NewFetcher(ctx).ResolveComment(srv.URL+"/comment/2", ctx.NewCounter())
	if err != nil {
		t.Fatalf("ResolveComment failed: %v", err)
	}
	if comment.Body != "second" {
		t.Errorf("Expected the requested comment back, got %q", comment.Body)
	}

	post := store.posts[postURI]
	if post == nil {
		t.Fatal("Ancestor post should be stored")
	}
	first := store.comments[srv.URL+"/comment/1"]
	if first == nil {
		t.Fatal("Ancestor comment should be stored")
	}
	if first.PostId != post.Id || first.ParentId != uuid.Nil {
		t.Error("First comment should hang off the post directly")
	}
	if comment.ParentId != first.Id || comment.PostId != post.Id {
		t.Error("Second comment should point at the first")
	}
}

func TestResolveCommentCycle(t *testing.T) {
	ctx, _ := newTestContext()
	docs := make(map[string]interface{})
	srv := newApubServer(docs)
	defer srv.Close()

	authorURI := srv.URL + "/users/bob"
	docs["/users/bob"] = personDoc(authorURI)
	docs["/comment/a"] = NoteObject{
		ID:           srv.URL + "/comment/a",
		Type:         "Note",
		AttributedTo: authorURI,
		InReplyTo:    srv.URL + "/comment/b",
		Content:      "a",
	}
	docs["/comment/b"] = NoteObject{
		ID:           srv.URL + "/comment/b",
		Type:         "Note",
		AttributedTo: authorURI,
		InReplyTo:    srv.URL + "/comment/a",
		Content:      "b",
	}

	err, _ := NewFetcher(ctx).ResolveComment(srv.URL+"/comment/a", ctx.NewCounter())
	if err == nil {
		t.Fatal("A cyclic reply chain must be rejected")
	}
}

func TestResolveCommentBudget(t *testing.T) {
	ctx, _ := newTestContext()
	ctx.Conf.Conf.Federation.FetchLimit = 3
	docs := make(map[string]interface{})
	srv := newApubServer(docs)
	defer srv.Close()

	authorURI := srv.URL + "/users/bob"
	docs["/users/bob"] = personDoc(authorURI)
	// chain longer than the budget
	for i := 0; i < 10; i++ {
		path := "/comment/" + string(rune('a'+i))
		parent := srv.URL + "/comment/" + string(rune('a'+i+1))
		docs[path] = NoteObject{
			ID:           srv.URL + path,
			Type:         "Note",
			AttributedTo: authorURI,
			InReplyTo:    parent,
			Content:      path,
		}
	}

	err, _ := NewFetcher(ctx).ResolveComment(srv.URL+"/comment/a", ctx.NewCounter())
	if !errors.Is(err, ErrRequestLimit) {
		t.Fatalf("Expected ErrRequestLimit, got %v", err)
	}
}

func TestResolveThreadTargetPost(t *testing.T) {
	ctx, store := newTestContext()
	post := &domain.Post{
		Id:        uuid.New(),
		ObjectURI: "https://remote.example/post/1",
	}
	store.posts[post.ObjectURI] = post

	err, got, comment := NewFetcher(ctx).ResolveThreadTarget(post.ObjectURI, ctx.NewCounter())
	if err != nil {
		t.Fatalf("ResolveThreadTarget failed: %v", err)
	}
	if got == nil || comment != nil {
		t.Error("Expected the stored post and no comment")
	}
}
