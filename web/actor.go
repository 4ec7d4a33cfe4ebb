package web

import (
	"encoding/json"
	"fmt"

	"github.com/okutkin/veche/activitypub"
	"github.com/okutkin/veche/db"
	"github.com/okutkin/veche/domain"
	"github.com/okutkin/veche/util"
)

type action uint

const (
	id action = iota
	inbox
	outbox
	followers
	sharedInbox
	moderators
)

// GetActor renders a local user as an ActivityPub Person document
func GetActor(username string, conf *util.AppConfig) (error, string) {
	err, acc := db.GetDB().ReadAccByUsername(username)
	if err != nil {
		return err, "{}"
	}

	displayName := acc.DisplayName
	if displayName == "" {
		displayName = acc.Username
	}

	actor := activitypub.ActorResponse{
		Context:           activitypub.ActivityContext,
		ID:                userIRI(conf.Conf.SslDomain, acc.Username, id),
		Type:              "Person",
		PreferredUsername: acc.Username,
		Name:              displayName,
		Summary:           acc.Summary,
		Inbox:             userIRI(conf.Conf.SslDomain, acc.Username, inbox),
		Outbox:            userIRI(conf.Conf.SslDomain, acc.Username, outbox),
		Followers:         userIRI(conf.Conf.SslDomain, acc.Username, followers),
	}
	actor.Endpoints.SharedInbox = userIRI(conf.Conf.SslDomain, acc.Username, sharedInbox)
	actor.PublicKey.ID = actor.ID + "#main-key"
	actor.PublicKey.Owner = actor.ID
	actor.PublicKey.PublicKeyPem = acc.WebPublicKey

	data, err := json.Marshal(actor)
	if err != nil {
		return err, "{}"
	}
	return nil, string(data)
}

// GetCommunityActor renders a local community as an ActivityPub Group
// document
func GetCommunityActor(name string, conf *util.AppConfig) (error, string) {
	err, community := db.GetDB().ReadCommunityByName(name)
	if err != nil || community == nil {
		return fmt.Errorf("community %s not found", name), "{}"
	}
	if !community.Local || community.Deleted {
		return fmt.Errorf("community %s not served here", name), "{}"
	}

	data, err := json.Marshal(communityActorDoc(community, conf))
	if err != nil {
		return err, "{}"
	}
	return nil, string(data)
}

// communityActorDoc builds the Group document for a local community.
// A Group is attributed to its moderator collection, that is how
// remotes learn who may act with community authority.
func communityActorDoc(community *domain.Community, conf *util.AppConfig) activitypub.ActorResponse {
	host := conf.Conf.SslDomain
	actor := activitypub.ActorResponse{
		Context:           activitypub.ActivityContext,
		ID:                communityIRI(host, community.Name, id),
		Type:              "Group",
		PreferredUsername: community.Name,
		Name:              community.Title,
		Summary:           community.Description,
		AttributedTo:      communityIRI(host, community.Name, moderators),
		Inbox:             communityIRI(host, community.Name, inbox),
		Outbox:            communityIRI(host, community.Name, outbox),
		Followers:         communityIRI(host, community.Name, followers),
	}
	actor.Endpoints.SharedInbox = communityIRI(host, community.Name, sharedInbox)
	actor.PublicKey.ID = actor.ID + "#main-key"
	actor.PublicKey.Owner = actor.ID
	actor.PublicKey.PublicKeyPem = community.PublicKeyPem
	return actor
}

func userIRI(domain string, username string, a action) string {
	prefix := fmt.Sprintf("https://%s/users/%s", domain, username)
	switch a {
	case inbox:
		return fmt.Sprintf("%s/inbox", prefix)
	case outbox:
		return fmt.Sprintf("%s/outbox", prefix)
	case followers:
		return fmt.Sprintf("%s/followers", prefix)
	case id:
		return prefix
	case sharedInbox:
		return fmt.Sprintf("https://%s/inbox", domain)
	default:
		return ""
	}
}

func communityIRI(domain string, name string, a action) string {
	prefix := fmt.Sprintf("https://%s/c/%s", domain, name)
	switch a {
	case inbox:
		return fmt.Sprintf("%s/inbox", prefix)
	case outbox:
		return fmt.Sprintf("%s/outbox", prefix)
	case followers:
		return fmt.Sprintf("%s/followers", prefix)
	case moderators:
		return fmt.Sprintf("%s/moderators", prefix)
	case id:
		return prefix
	case sharedInbox:
		return fmt.Sprintf("https://%s/inbox", domain)
	default:
		return ""
	}
}
