package activitypub

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/okutkin/veche/util"
)

const nodeinfoSchemaPrefix = "http://nodeinfo.diaspora.software/ns/schema/"

// nodeinfoLinks is the /.well-known/nodeinfo discovery document
type nodeinfoLinks struct {
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// nodeinfoDocument carries the fields kept per instance
type nodeinfoDocument struct {
	Software struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"software"`
}

// refreshInstance marks the actor's instance alive and, on first
// contact, fills in its software name and version from nodeinfo.
// Instance metadata is not part of the object graph and does not spend
// the per-activity fetch budget; failures are logged and never fail
// the resolution that triggered the refresh.
func (f *Fetcher) refreshInstance(actorURI string) {
	parsed, err := url.Parse(actorURI)
	if err != nil {
		return
	}
	domainName := parsed.Hostname()

	if err := f.ctx.Store.MarkInstanceAlive(domainName); err != nil {
		log.Printf("Fetcher: marking instance %s alive failed: %v", domainName, err)
		return
	}
	err, inst := f.ctx.Store.ReadInstanceByDomain(domainName)
	if err != nil || inst == nil || inst.Software != "" {
		return
	}

	base := parsed.Scheme + "://" + parsed.Host
	var links nodeinfoLinks
	if err := f.fetchInstanceJSON(base+"/.well-known/nodeinfo", &links); err != nil {
		log.Printf("Fetcher: nodeinfo discovery for %s failed: %v", domainName, err)
		return
	}
	var href string
	for _, link := range links.Links {
		if strings.HasPrefix(link.Rel, nodeinfoSchemaPrefix) {
			href = link.Href
		}
	}
	if href == "" {
		return
	}

	var doc nodeinfoDocument
	if err := f.fetchInstanceJSON(href, &doc); err != nil {
		log.Printf("Fetcher: fetching nodeinfo for %s failed: %v", domainName, err)
		return
	}
	if doc.Software.Name == "" {
		return
	}

	inst.Software = doc.Software.Name
	inst.Version = doc.Software.Version
	if err := f.ctx.Store.UpsertInstance(inst); err != nil {
		log.Printf("Fetcher: storing nodeinfo for %s failed: %v", domainName, err)
	}
}

// fetchInstanceJSON is a plain JSON GET outside the activity fetch
// budget, still subject to the URL admission policy
func (f *Fetcher) fetchInstanceJSON(uri string, out interface{}) error {
	if err := f.ctx.checkURI(uri); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", uri, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", util.UserAgent())

	resp, err := f.ctx.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch %s: unexpected status %d", uri, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fetch %s: decode: %w", uri, err)
	}
	return nil
}
