package activitypub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
	"github.com/okutkin/veche/util"
)

// actorRefetchInterval is how long a cached remote actor stays fresh
// before the next resolution triggers a refetch
const actorRefetchInterval = 24 * time.Hour

// RequestCounter bounds the outgoing fetches spent on one inbound
// activity. Each processing chain owns exactly one counter; it is
// never shared between chains and needs no locking.
type RequestCounter struct {
	count int
	limit int
}

// Tick consumes one unit of the budget
func (c *RequestCounter) Tick() error {
	c.count++
	if c.count > c.limit {
		return fmt.Errorf("reached %d: %w", c.limit, ErrRequestLimit)
	}
	return nil
}

// Count returns how many fetches this chain has performed so far
func (c *RequestCounter) Count() int {
	return c.count
}

// Fetcher resolves apub ids into stored objects, fetching over HTTP
// when the object is remote and not yet cached
type Fetcher struct {
	ctx *Context
}

func NewFetcher(ctx *Context) *Fetcher {
	return &Fetcher{ctx: ctx}
}

// fetchJSON performs one budgeted, admission-checked GET and decodes
// the body into out. A 410 response surfaces as ErrObjectDeleted so
// callers can write the tombstone for their object type.
func (f *Fetcher) fetchJSON(uri string, counter *RequestCounter, out interface{}) error {
	if err := counter.Tick(); err != nil {
		return fmt.Errorf("fetch %s: %w", uri, err)
	}
	if err := f.ctx.checkURI(uri); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", uri, err)
	}
	req.Header.Set("Accept", ContentType)
	req.Header.Set("User-Agent", util.UserAgent())

	resp, err := f.ctx.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		return fmt.Errorf("fetch %s: %w", uri, ErrObjectDeleted)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("fetch %s: %w", uri, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("fetch %s: unexpected status %d", uri, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fetch %s: decode: %w", uri, err)
	}
	return nil
}

// ResolveActor returns the account behind an actor uri. Local uris are
// served from the accounts table, remote ones from the remote account
// cache with a refetch when the cached copy is older than a day.
func (f *Fetcher) ResolveActor(uri string, counter *RequestCounter) (error, *domain.RemoteAccount) {
	if f.ctx.IsLocalURI(uri) {
		return f.localActor(uri)
	}

	err, cached := f.ctx.Store.ReadRemoteAccountByURI(uri)
	if err == nil && cached != nil {
		if cached.Deleted {
			return fmt.Errorf("actor %s: %w", uri, ErrObjectDeleted), nil
		}
		if time.Since(cached.LastFetchedAt) < actorRefetchInterval {
			return nil, cached
		}
	}

	var actor ActorResponse
	if err := f.fetchJSON(uri, counter, &actor); err != nil {
		if errors.Is(err, ErrObjectDeleted) {
			if dbErr := f.ctx.Store.TombstoneRemoteAccount(uri); dbErr != nil {
				log.Printf("Fetcher: tombstoning actor %s failed: %v", uri, dbErr)
			}
			return err, nil
		}
		// stale cache beats no data at all
		if cached != nil {
			log.Printf("Fetcher: refetching actor %s failed, keeping stale copy: %v", uri, err)
			return nil, cached
		}
		return err, nil
	}

	if actor.ID != uri {
		return fmt.Errorf("actor %s: document id %s does not match", uri, actor.ID), nil
	}
	if actor.PublicKey.PublicKeyPem == "" {
		return fmt.Errorf("actor %s has no public key", uri), nil
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("actor %s: %w", uri, err), nil
	}

	acc := &domain.RemoteAccount{
		Username:       actor.PreferredUsername,
		Domain:         parsed.Hostname(),
		ActorURI:       uri,
		DisplayName:    actor.Name,
		Summary:        actor.Summary,
		InboxURI:       actor.Inbox,
		SharedInboxURI: actor.Endpoints.SharedInbox,
		PublicKeyPem:   actor.PublicKey.PublicKeyPem,
		LastFetchedAt:  time.Now(),
	}

	if cached != nil {
		acc.Id = cached.Id
		if err := f.ctx.Store.UpdateRemoteAccount(acc); err != nil {
			return err, nil
		}
	} else {
		acc.Id = uuid.New()
		if err := f.ctx.Store.CreateRemoteAccount(acc); err != nil {
			return err, nil
		}
	}

	f.refreshInstance(uri)
	return nil, acc
}

// localActor adapts a local account to the shape the dispatcher works
// with, so handlers never branch on locality
func (f *Fetcher) localActor(uri string) (error, *domain.RemoteAccount) {
	username := lastPathSegment(uri)
	err, acc := f.ctx.Store.ReadAccByUsername(username)
	if err != nil || acc == nil {
		return fmt.Errorf("local actor %s: %w", uri, ErrNotFound), nil
	}
	return nil, &domain.RemoteAccount{
		Id:            acc.Id,
		Username:      acc.Username,
		Domain:        f.ctx.Hostname(),
		ActorURI:      uri,
		DisplayName:   acc.DisplayName,
		Summary:       acc.Summary,
		InboxURI:      uri + "/inbox",
		PublicKeyPem:  acc.WebPublicKey,
		LastFetchedAt: time.Now(),
	}
}

// ResolveCommunity returns the community behind a group actor uri,
// fetching and caching it when remote
func (f *Fetcher) ResolveCommunity(uri string, counter *RequestCounter) (error, *domain.Community) {
	err, cached := f.ctx.Store.ReadCommunityByURI(uri)
	if err == nil && cached != nil {
		if cached.Deleted {
			return fmt.Errorf("community %s: %w", uri, ErrObjectDeleted), nil
		}
		if cached.Local || time.Since(cached.LastFetchedAt) < actorRefetchInterval {
			return nil, cached
		}
	}
	if f.ctx.IsLocalURI(uri) {
		return fmt.Errorf("community %s: %w", uri, ErrNotFound), nil
	}

	var actor ActorResponse
	if err := f.fetchJSON(uri, counter, &actor); err != nil {
		if errors.Is(err, ErrObjectDeleted) {
			if dbErr := f.ctx.Store.TombstoneCommunity(uri); dbErr != nil {
				log.Printf("Fetcher: tombstoning community %s failed: %v", uri, dbErr)
			}
			return err, nil
		}
		if cached != nil {
			log.Printf("Fetcher: refetching community %s failed, keeping stale copy: %v", uri, err)
			return nil, cached
		}
		return err, nil
	}

	if actor.Type != "Group" {
		return fmt.Errorf("community %s: actor type %s is not a Group", uri, actor.Type), nil
	}
	if actor.ID != uri {
		return fmt.Errorf("community %s: document id %s does not match", uri, actor.ID), nil
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("community %s: %w", uri, err), nil
	}

	cmt := &domain.Community{
		Name:          actor.PreferredUsername,
		Title:         actor.Name,
		Description:   actor.Summary,
		Domain:        parsed.Hostname(),
		ActorURI:      uri,
		InboxURI:      actor.Inbox,
		FollowersURI:  actor.Followers,
		Local:         false,
		PublicKeyPem:  actor.PublicKey.PublicKeyPem,
		LastFetchedAt: time.Now(),
	}

	if cached != nil {
		cmt.Id = cached.Id
		if err := f.ctx.Store.UpdateCommunity(cmt); err != nil {
			return err, nil
		}
	} else {
		cmt.Id = uuid.New()
		if err := f.ctx.Store.CreateCommunity(cmt); err != nil {
			return err, nil
		}
	}

	f.refreshInstance(uri)
	return nil, cmt
}

// ResolvePost returns the post behind an object uri, fetching the Page
// and its community when remote
func (f *Fetcher) ResolvePost(uri string, counter *RequestCounter) (error, *domain.Post) {
	err, cached := f.ctx.Store.ReadPostByURI(uri)
	if err == nil && cached != nil {
		return nil, cached
	}
	if f.ctx.IsLocalURI(uri) {
		return fmt.Errorf("post %s: %w", uri, ErrNotFound), nil
	}

	var page PageObject
	if err := f.fetchJSON(uri, counter, &page); err != nil {
		if errors.Is(err, ErrObjectDeleted) {
			if dbErr := f.ctx.Store.TombstonePost(uri); dbErr != nil {
				log.Printf("Fetcher: tombstoning post %s failed: %v", uri, dbErr)
			}
		}
		return err, nil
	}
	if page.Type != "Page" {
		return fmt.Errorf("post %s: object type %s is not a Page", uri, page.Type), nil
	}

	return f.storePostFromPage(&page, counter)
}

// storePostFromPage resolves the page's community and creator, then
// inserts the post
func (f *Fetcher) storePostFromPage(page *PageObject, counter *RequestCounter) (error, *domain.Post) {
	communityURI := page.Audience
	if communityURI == "" {
		communityURI = firstNonPublic(page.To, page.Cc)
	}
	if communityURI == "" {
		return fmt.Errorf("post %s: no community in audience or addressing", page.ID), nil
	}

	err, community := f.ResolveCommunity(communityURI, counter)
	if err != nil {
		return err, nil
	}
	if err, _ := f.ResolveActor(page.AttributedTo, counter); err != nil {
		return err, nil
	}

	post := &domain.Post{
		Id:          uuid.New(),
		CommunityId: community.Id,
		CreatorURI:  page.AttributedTo,
		ObjectURI:   page.ID,
		Title:       page.Name,
		Body:        page.Content,
		URL:         page.URL,
		Local:       false,
		CreatedAt:   parseApubTime(page.Published),
		UpdatedAt:   parseApubTime(page.Updated),
	}
	if page.CommentsEnabled != nil {
		post.Locked = !*page.CommentsEnabled
	}
	if err := f.ctx.Store.CreatePost(post); err != nil {
		return err, nil
	}
	return nil, post
}

// ResolveComment returns the comment behind an object uri. Remote
// reply chains are walked iteratively towards the post with an
// explicit work list, so a deep or cyclic inReplyTo chain can never
// blow the stack or loop forever; the shared counter bounds the total
// number of fetches.
func (f *Fetcher) ResolveComment(uri string, counter *RequestCounter) (error, *domain.Comment) {
	err, cached := f.ctx.Store.ReadCommentByURI(uri)
	if err == nil && cached != nil {
		return nil, cached
	}
	if f.ctx.IsLocalURI(uri) {
		return fmt.Errorf("comment %s: %w", uri, ErrNotFound), nil
	}

	// walk unknown ancestors, newest first
	var pending []NoteObject
	visited := make(map[string]bool)
	cur := uri

	var post *domain.Post
	var parent *domain.Comment

	for {
		if visited[cur] {
			return fmt.Errorf("comment %s: inReplyTo cycle at %s", uri, cur), nil
		}
		visited[cur] = true

		if err, c := f.ctx.Store.ReadCommentByURI(cur); err == nil && c != nil {
			parent = c
			break
		}
		if err, p := f.ctx.Store.ReadPostByURI(cur); err == nil && p != nil {
			post = p
			break
		}
		if f.ctx.IsLocalURI(cur) {
			return fmt.Errorf("comment %s: local ancestor %s: %w", uri, cur, ErrNotFound), nil
		}

		var probe struct {
			Type string `json:"type"`
		}
		var raw json.RawMessage
		if err := f.fetchJSON(cur, counter, &raw); err != nil {
			if errors.Is(err, ErrObjectDeleted) && cur == uri {
				if dbErr := f.ctx.Store.TombstoneComment(uri); dbErr != nil {
					log.Printf("Fetcher: tombstoning comment %s failed: %v", uri, dbErr)
				}
			}
			return err, nil
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return fmt.Errorf("comment %s: ancestor %s: %w", uri, cur, err), nil
		}

		switch probe.Type {
		case "Page":
			var page PageObject
			if err := json.Unmarshal(raw, &page); err != nil {
				return fmt.Errorf("comment %s: page %s: %w", uri, cur, err), nil
			}
			err, p := f.storePostFromPage(&page, counter)
			if err != nil {
				return err, nil
			}
			post = p
		case "Note":
			var note NoteObject
			if err := json.Unmarshal(raw, &note); err != nil {
				return fmt.Errorf("comment %s: note %s: %w", uri, cur, err), nil
			}
			if note.InReplyTo == "" {
				return fmt.Errorf("comment %s: note %s has no inReplyTo", uri, cur), nil
			}
			pending = append(pending, note)
			cur = note.InReplyTo
			continue
		default:
			return fmt.Errorf("comment %s: ancestor %s has type %s: %w", uri, cur, probe.Type, ErrUnsupportedActivity), nil
		}
		break
	}

	// insert oldest ancestor first so each child finds its parent
	var result *domain.Comment
	for i := len(pending) - 1; i >= 0; i-- {
		note := pending[i]
		if err, _ := f.ResolveActor(note.AttributedTo, counter); err != nil {
			return err, nil
		}

		comment := &domain.Comment{
			Id:         uuid.New(),
			CreatorURI: note.AttributedTo,
			ObjectURI:  note.ID,
			Body:       note.Content,
			Local:      false,
			CreatedAt:  parseApubTime(note.Published),
			UpdatedAt:  parseApubTime(note.Updated),
		}
		if parent != nil {
			comment.PostId = parent.PostId
			comment.ParentId = parent.Id
		} else {
			comment.PostId = post.Id
		}
		if err := f.ctx.Store.CreateComment(comment); err != nil {
			return err, nil
		}
		parent = comment
		result = comment
	}

	if result == nil {
		return fmt.Errorf("comment %s: %w", uri, ErrNotFound), nil
	}
	return nil, result
}

// ResolveThreadTarget resolves a uri that may denote either a post or
// a comment, returning exactly one of the two
func (f *Fetcher) ResolveThreadTarget(uri string, counter *RequestCounter) (error, *domain.Post, *domain.Comment) {
	if err, c := f.ctx.Store.ReadCommentByURI(uri); err == nil && c != nil {
		return nil, nil, c
	}
	if err, p := f.ctx.Store.ReadPostByURI(uri); err == nil && p != nil {
		return nil, p, nil
	}
	if f.ctx.IsLocalURI(uri) {
		return fmt.Errorf("thread target %s: %w", uri, ErrNotFound), nil, nil
	}

	var raw json.RawMessage
	if err := f.fetchJSON(uri, counter, &raw); err != nil {
		return err, nil, nil
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("thread target %s: %w", uri, err), nil, nil
	}

	switch probe.Type {
	case "Page":
		var page PageObject
		if err := json.Unmarshal(raw, &page); err != nil {
			return fmt.Errorf("thread target %s: %w", uri, err), nil, nil
		}
		err, post := f.storePostFromPage(&page, counter)
		return err, post, nil
	case "Note":
		err, comment := f.ResolveComment(uri, counter)
		return err, nil, comment
	}
	return fmt.Errorf("thread target %s has type %s: %w", uri, probe.Type, ErrUnsupportedActivity), nil, nil
}

// firstNonPublic picks the first addressed actor that is not the
// public collection
func firstNonPublic(lists ...[]string) string {
	for _, list := range lists {
		for _, uri := range list {
			if uri != PublicURI {
				return uri
			}
		}
	}
	return ""
}

func lastPathSegment(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	return parts[len(parts)-1]
}

func parseApubTime(value string) time.Time {
	if value == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Now()
	}
	return t
}
