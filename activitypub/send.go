package activitypub

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
)

// Outbox builds local activities, records them and hands them to the
// delivery queue
type Outbox struct {
	ctx     *Context
	fetcher *Fetcher
}

func NewOutbox(ctx *Context) *Outbox {
	return &Outbox{ctx: ctx, fetcher: NewFetcher(ctx)}
}

func (o *Outbox) newEnvelope(activityType, actorURI string) *Envelope {
	ctxJSON, _ := json.Marshal(ActivityContext)
	return &Envelope{
		Context: ctxJSON,
		ID:      o.ctx.NewObjectURI("activities"),
		Type:    activityType,
		Actor:   actorURI,
	}
}

func (env *Envelope) setObject(obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("activity %s: marshal object: %w", env.ID, err)
	}
	env.Object = data
	env.raw = nil
	return nil
}

// dispatch records the activity and submits it to the queue
func (o *Outbox) dispatch(env *Envelope, senderURI, privateKeyPem string, inboxes []string) error {
	data := env.Raw()
	if data == nil {
		return fmt.Errorf("activity %s: marshal failed", env.ID)
	}

	row := &domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  env.ID,
		ActivityType: env.Type,
		ActorURI:     env.Actor,
		ObjectURI:    env.ObjectURI(),
		RawJSON:      string(data),
		Local:        true,
		CreatedAt:    time.Now(),
	}
	if err := o.ctx.Store.CreateActivity(row); err != nil {
		return err
	}

	o.ctx.Queue.Submit(env.ID, data, senderURI, privateKeyPem, inboxes)
	return nil
}

// actorInbox prefers the shared inbox when the actor advertises one
func actorInbox(acc *domain.RemoteAccount) string {
	if acc.SharedInboxURI != "" {
		return acc.SharedInboxURI
	}
	return acc.InboxURI
}

// followerInboxes collects the deduplicated remote inboxes of the
// accepted followers of an actor
func (o *Outbox) followerInboxes(targetURI string) []string {
	err, follows := o.ctx.Store.ReadFollowersOf(targetURI)
	if err != nil || follows == nil {
		return nil
	}

	var inboxes []string
	for _, fl := range *follows {
		if !fl.Accepted || o.ctx.IsLocalURI(fl.ActorURI) {
			continue
		}
		err, acc := o.ctx.Store.ReadRemoteAccountByURI(fl.ActorURI)
		if err != nil || acc == nil || acc.Deleted {
			continue
		}
		inboxes = append(inboxes, actorInbox(acc))
	}
	return inboxes
}

// communityInboxes decides where a community-directed activity goes:
// straight to the community when it lives elsewhere, to the local
// community's followers otherwise
func (o *Outbox) communityInboxes(community *domain.Community) []string {
	if community.Local {
		return o.followerInboxes(community.ActorURI)
	}
	return []string{community.InboxURI}
}

// SendFollow subscribes a local account to a remote actor or community
func (o *Outbox) SendFollow(acc *domain.Account, targetURI string) error {
	actorURI := o.ctx.ActorURI(acc.Username)

	env := o.newEnvelope("Follow", actorURI)
	if err := env.setObject(targetURI); err != nil {
		return err
	}
	env.To = []string{targetURI}

	follow := &domain.Follow{
		Id:        uuid.New(),
		ActorURI:  actorURI,
		TargetURI: targetURI,
		URI:       env.ID,
		Pending:   true,
		CreatedAt: time.Now(),
	}
	if err := o.ctx.Store.CreateFollow(follow); err != nil {
		return err
	}

	counter := o.ctx.NewCounter()
	err, target := o.fetcher.ResolveActor(targetURI, counter)
	if err != nil {
		// the target may be a community rather than a person
		cErr, community := o.fetcher.ResolveCommunity(targetURI, counter)
		if cErr != nil {
			return err
		}
		return o.dispatch(env, actorURI, acc.WebPrivateKey, []string{community.InboxURI})
	}
	return o.dispatch(env, actorURI, acc.WebPrivateKey, []string{actorInbox(target)})
}

// SendUndoFollow retracts an earlier follow
func (o *Outbox) SendUndoFollow(acc *domain.Account, targetURI string) error {
	actorURI := o.ctx.ActorURI(acc.Username)

	err, follow := o.ctx.Store.ReadFollowByActors(actorURI, targetURI)
	if err != nil || follow == nil {
		return fmt.Errorf("undo follow of %s: %w", targetURI, ErrNotFound)
	}

	inner := &Envelope{
		ID:    follow.URI,
		Type:  "Follow",
		Actor: actorURI,
	}
	if err := inner.setObject(targetURI); err != nil {
		return err
	}

	env := o.newEnvelope("Undo", actorURI)
	if err := env.setObject(inner); err != nil {
		return err
	}
	env.To = []string{targetURI}

	if err := o.ctx.Store.DeleteFollowByActors(actorURI, targetURI); err != nil {
		return err
	}

	counter := o.ctx.NewCounter()
	err, target := o.fetcher.ResolveActor(targetURI, counter)
	if err != nil {
		cErr, community := o.fetcher.ResolveCommunity(targetURI, counter)
		if cErr != nil {
			return err
		}
		return o.dispatch(env, actorURI, acc.WebPrivateKey, []string{community.InboxURI})
	}
	return o.dispatch(env, actorURI, acc.WebPrivateKey, []string{actorInbox(target)})
}

// SendAcceptFollow confirms a received follow on behalf of the local
// target, which is either a user or a community
func (o *Outbox) SendAcceptFollow(follow *domain.Follow, followEnv *Envelope) error {
	senderURI := follow.TargetURI

	var privateKey string
	if err, community := o.ctx.Store.ReadCommunityByURI(senderURI); err == nil && community != nil && community.Local {
		privateKey = community.PrivateKeyPem
	} else {
		err, acc := o.ctx.Store.ReadAccByUsername(lastPathSegment(senderURI))
		if err != nil || acc == nil {
			return fmt.Errorf("accept follow: target %s: %w", senderURI, ErrNotFound)
		}
		privateKey = acc.WebPrivateKey
	}

	env := o.newEnvelope("Accept", senderURI)
	env.Object = followEnv.Raw()
	env.To = []string{follow.ActorURI}

	counter := o.ctx.NewCounter()
	err, follower := o.fetcher.ResolveActor(follow.ActorURI, counter)
	if err != nil {
		return err
	}
	return o.dispatch(env, senderURI, privateKey, []string{actorInbox(follower)})
}

// SendCreatePost federates a new local post to its community
func (o *Outbox) SendCreatePost(acc *domain.Account, post *domain.Post, community *domain.Community) error {
	return o.sendPost("Create", acc, post, community)
}

// SendUpdatePost federates an edit of a local post
func (o *Outbox) SendUpdatePost(acc *domain.Account, post *domain.Post, community *domain.Community) error {
	return o.sendPost("Update", acc, post, community)
}

func (o *Outbox) sendPost(activityType string, acc *domain.Account, post *domain.Post, community *domain.Community) error {
	actorURI := o.ctx.ActorURI(acc.Username)
	commentsEnabled := !post.Locked

	page := PageObject{
		ID:              post.ObjectURI,
		Type:            "Page",
		AttributedTo:    actorURI,
		To:              []string{PublicURI},
		Cc:              []string{community.ActorURI},
		Audience:        community.ActorURI,
		Name:            post.Title,
		Content:         post.Body,
		URL:             post.URL,
		CommentsEnabled: &commentsEnabled,
		Published:       post.CreatedAt.UTC().Format(time.RFC3339),
	}
	if activityType == "Update" {
		page.Updated = time.Now().UTC().Format(time.RFC3339)
	}

	env := o.newEnvelope(activityType, actorURI)
	if err := env.setObject(page); err != nil {
		return err
	}
	env.To = []string{PublicURI}
	env.Cc = []string{community.ActorURI}

	if err := o.dispatch(env, actorURI, acc.WebPrivateKey, o.communityInboxes(community)); err != nil {
		return err
	}
	if community.Local {
		return o.AnnounceToFollowers(community, env)
	}
	return nil
}

// SendCreateComment federates a new local comment
func (o *Outbox) SendCreateComment(acc *domain.Account, comment *domain.Comment, parentURI string, community *domain.Community) error {
	return o.sendComment("Create", acc, comment, parentURI, community)
}

// SendUpdateComment federates an edit of a local comment
func (o *Outbox) SendUpdateComment(acc *domain.Account, comment *domain.Comment, parentURI string, community *domain.Community) error {
	return o.sendComment("Update", acc, comment, parentURI, community)
}

func (o *Outbox) sendComment(activityType string, acc *domain.Account, comment *domain.Comment, parentURI string, community *domain.Community) error {
	actorURI := o.ctx.ActorURI(acc.Username)

	note := NoteObject{
		ID:           comment.ObjectURI,
		Type:         "Note",
		AttributedTo: actorURI,
		To:           []string{PublicURI},
		Cc:           []string{community.ActorURI},
		Audience:     community.ActorURI,
		InReplyTo:    parentURI,
		Content:      comment.Body,
		Published:    comment.CreatedAt.UTC().Format(time.RFC3339),
	}
	if activityType == "Update" {
		note.Updated = time.Now().UTC().Format(time.RFC3339)
	}

	env := o.newEnvelope(activityType, actorURI)
	if err := env.setObject(note); err != nil {
		return err
	}
	env.To = []string{PublicURI}
	env.Cc = []string{community.ActorURI}

	if err := o.dispatch(env, actorURI, acc.WebPrivateKey, o.communityInboxes(community)); err != nil {
		return err
	}
	if community.Local {
		return o.AnnounceToFollowers(community, env)
	}
	return nil
}

// SendDelete federates the creator-side deletion of a post or comment
func (o *Outbox) SendDelete(acc *domain.Account, objectURI string, community *domain.Community) error {
	actorURI := o.ctx.ActorURI(acc.Username)

	env := o.newEnvelope("Delete", actorURI)
	if err := env.setObject(TombstoneObject{ID: objectURI, Type: "Tombstone"}); err != nil {
		return err
	}
	env.To = []string{PublicURI}
	env.Cc = []string{community.ActorURI}

	if err := o.dispatch(env, actorURI, acc.WebPrivateKey, o.communityInboxes(community)); err != nil {
		return err
	}
	if community.Local {
		return o.AnnounceToFollowers(community, env)
	}
	return nil
}

// SendVote federates a Like (+1) or Dislike (-1) on a post or comment
func (o *Outbox) SendVote(acc *domain.Account, objectURI string, score int, community *domain.Community) error {
	actorURI := o.ctx.ActorURI(acc.Username)

	activityType := "Like"
	if score < 0 {
		activityType = "Dislike"
	}

	env := o.newEnvelope(activityType, actorURI)
	if err := env.setObject(objectURI); err != nil {
		return err
	}
	env.To = []string{community.ActorURI}

	if err := o.dispatch(env, actorURI, acc.WebPrivateKey, o.communityInboxes(community)); err != nil {
		return err
	}
	if community.Local {
		return o.AnnounceToFollowers(community, env)
	}
	return nil
}

// SendUndoVote retracts an earlier vote
func (o *Outbox) SendUndoVote(acc *domain.Account, objectURI string, score int, community *domain.Community) error {
	actorURI := o.ctx.ActorURI(acc.Username)

	innerType := "Like"
	if score < 0 {
		innerType = "Dislike"
	}
	inner := &Envelope{
		ID:    o.ctx.NewObjectURI("activities"),
		Type:  innerType,
		Actor: actorURI,
	}
	if err := inner.setObject(objectURI); err != nil {
		return err
	}

	env := o.newEnvelope("Undo", actorURI)
	if err := env.setObject(inner); err != nil {
		return err
	}
	env.To = []string{community.ActorURI}

	if err := o.dispatch(env, actorURI, acc.WebPrivateKey, o.communityInboxes(community)); err != nil {
		return err
	}
	if community.Local {
		return o.AnnounceToFollowers(community, env)
	}
	return nil
}

// SendPrivateMessage federates a direct message to one recipient
func (o *Outbox) SendPrivateMessage(acc *domain.Account, pm *domain.PrivateMessage) error {
	actorURI := o.ctx.ActorURI(acc.Username)

	msg := ChatMessageObject{
		ID:           pm.ObjectURI,
		Type:         "ChatMessage",
		AttributedTo: actorURI,
		To:           []string{pm.RecipientURI},
		Content:      pm.Content,
		Published:    pm.CreatedAt.UTC().Format(time.RFC3339),
	}

	env := o.newEnvelope("Create", actorURI)
	if err := env.setObject(msg); err != nil {
		return err
	}
	env.To = []string{pm.RecipientURI}

	counter := o.ctx.NewCounter()
	err, recipient := o.fetcher.ResolveActor(pm.RecipientURI, counter)
	if err != nil {
		return err
	}
	// direct messages go to the personal inbox, never a shared one
	return o.dispatch(env, actorURI, acc.WebPrivateKey, []string{recipient.InboxURI})
}

// SendFlag reports a post or comment to its community's moderators
func (o *Outbox) SendFlag(acc *domain.Account, objectURI, reason string, community *domain.Community) error {
	actorURI := o.ctx.ActorURI(acc.Username)

	env := o.newEnvelope("Flag", actorURI)
	if err := env.setObject(objectURI); err != nil {
		return err
	}
	env.Summary = reason
	env.To = []string{community.ActorURI}

	if community.Local {
		// local reports stay local
		return nil
	}
	return o.dispatch(env, actorURI, acc.WebPrivateKey, []string{community.InboxURI})
}

// SendRemove federates a moderator removal of a post or comment
func (o *Outbox) SendRemove(acc *domain.Account, objectURI string, community *domain.Community) error {
	actorURI := o.ctx.ActorURI(acc.Username)

	env := o.newEnvelope("Remove", actorURI)
	if err := env.setObject(objectURI); err != nil {
		return err
	}
	env.To = []string{PublicURI}
	env.Cc = []string{community.ActorURI}

	if err := o.dispatch(env, actorURI, acc.WebPrivateKey, o.communityInboxes(community)); err != nil {
		return err
	}
	if community.Local {
		return o.AnnounceToFollowers(community, env)
	}
	return nil
}

// AnnounceToFollowers wraps an activity received or created by a local
// community and pushes it to the community's followers. This is how
// content spreads from the community's home instance to every
// subscribed instance.
func (o *Outbox) AnnounceToFollowers(community *domain.Community, inner *Envelope) error {
	if !community.Local {
		return nil
	}
	if community.PrivateKeyPem == "" {
		return fmt.Errorf("%w: community %s", ErrSigningKey, community.Name)
	}

	env := o.newEnvelope("Announce", community.ActorURI)
	env.Object = inner.Raw()
	env.To = []string{PublicURI}
	env.Cc = []string{community.FollowersURI}

	inboxes := o.followerInboxes(community.ActorURI)
	if len(inboxes) == 0 {
		log.Printf("Outbox: community %s has no remote followers, skipping announce", community.Name)
		return nil
	}
	return o.dispatch(env, community.ActorURI, community.PrivateKeyPem, inboxes)
}
