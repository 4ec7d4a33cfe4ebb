package web

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okutkin/veche/activitypub"
	"github.com/okutkin/veche/db"
	"github.com/okutkin/veche/util"
)

// GetWebfinger answers a .well-known/webfinger lookup for a local user
// or community. The resource is "acct:name@host"; communities share
// the same namespace, a "c/" path prefix is not part of the acct form.
func GetWebfinger(resource string, conf *util.AppConfig) (error, string) {
	name := strings.TrimPrefix(resource, "acct:")
	if at := strings.Index(name, "@"); at >= 0 {
		host := name[at+1:]
		if !strings.EqualFold(host, conf.Conf.SslDomain) {
			return fmt.Errorf("webfinger: %s is not served here", resource), GetWebFingerNotFound()
		}
		name = name[:at]
	}
	if name == "" {
		return fmt.Errorf("webfinger: empty resource"), GetWebFingerNotFound()
	}

	var href string
	if err, acc := db.GetDB().ReadAccByUsername(name); err == nil && acc != nil {
		href = userIRI(conf.Conf.SslDomain, acc.Username, id)
	} else if err, community := db.GetDB().ReadCommunityByName(name); err == nil && community != nil && !community.Deleted {
		href = community.ActorURI
	} else {
		return fmt.Errorf("webfinger: %s: not found", resource), GetWebFingerNotFound()
	}

	response := activitypub.WebfingerResponse{
		Subject: fmt.Sprintf("acct:%s@%s", name, conf.Conf.SslDomain),
		Links: []activitypub.WebfingerLink{
			{
				Rel:  "self",
				Type: activitypub.ContentType,
				Href: href,
			},
		},
	}

	data, err := json.Marshal(response)
	if err != nil {
		return err, GetWebFingerNotFound()
	}
	return nil, string(data)
}

func GetWebFingerNotFound() string {
	return `{"detail":"Not Found"}`
}
