package activitypub

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/okutkin/veche/domain"
)

// ResolveHandle turns a user handle ("name" or "name@host") into a
// resolved actor. Remote discovery walks webfinger first and then
// fetches the actor document; it is only available to signed-in local
// users, anonymous callers get local lookups only.
func (f *Fetcher) ResolveHandle(handle string, requester *domain.Account, counter *RequestCounter) (error, *domain.RemoteAccount) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")

	name, host, remote := strings.Cut(handle, "@")
	if name == "" {
		return fmt.Errorf("resolve %q: empty name", handle), nil
	}

	if !remote || strings.EqualFold(host, f.ctx.Hostname()) {
		return f.localActor(f.ctx.ActorURI(name))
	}

	err, cached := f.ctx.Store.ReadRemoteAccountByName(name, host)
	if err == nil && cached != nil && !cached.Deleted {
		return nil, cached
	}

	if requester == nil {
		return fmt.Errorf("resolve %q: %w", handle, ErrNotFound), nil
	}

	actorURI, err := f.webfingerLookup(name, host, counter)
	if err != nil {
		return err, nil
	}
	return f.ResolveActor(actorURI, counter)
}

// webfingerLookup queries host's .well-known/webfinger for the acct
// resource and returns the actor uri of the self link
func (f *Fetcher) webfingerLookup(name, host string, counter *RequestCounter) (string, error) {
	endpoint := url.URL{
		Scheme:   "https",
		Host:     host,
		Path:     "/.well-known/webfinger",
		RawQuery: "resource=" + url.QueryEscape(fmt.Sprintf("acct:%s@%s", name, host)),
	}

	var wf WebfingerResponse
	if err := f.fetchJSON(endpoint.String(), counter, &wf); err != nil {
		return "", err
	}

	for _, link := range wf.Links {
		if link.Rel == "self" && link.Type == ContentType && link.Href != "" {
			return link.Href, nil
		}
	}
	return "", fmt.Errorf("webfinger %s@%s: no self link: %w", name, host, ErrNotFound)
}
