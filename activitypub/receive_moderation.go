package activitypub

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
)

// verifyModerator checks that the actor may moderate the addressed
// community: either it is a listed moderator or it is the community
// actor itself, the case when a remote instance relays a mod action
// through the community
func verifyModerator(in *inboxChain, actorURI, communityURI string) error {
	if communityURI == "" {
		return fmt.Errorf("no community addressed")
	}
	err, community := in.fetcher.ResolveCommunity(communityURI, in.counter)
	if err != nil {
		return err
	}
	if actorURI == community.ActorURI {
		return nil
	}
	err, isMod := in.ctx.Store.IsModerator(community.Id, actorURI)
	if err != nil {
		return err
	}
	if !isMod {
		return fmt.Errorf("%s does not moderate %s", actorURI, community.Name)
	}
	return nil
}

// removeHandler covers two wire meanings of Remove: with a target
// collection it strips a moderator, without one it is a moderator
// removing a post or comment
type removeHandler struct{}

func (removeHandler) verify(in *inboxChain, env *Envelope) error {
	if env.ObjectURI() == "" {
		return fmt.Errorf("remove %s has no object", env.ID)
	}
	communityURI := addressedCommunity(env)
	if communityURI == "" && env.Target != "" {
		communityURI = moderatorCollectionOwner(env.Target)
	}
	return verifyModerator(in, env.Actor, communityURI)
}

func (removeHandler) receive(in *inboxChain, env *Envelope) error {
	objectURI := env.ObjectURI()

	if env.Target != "" {
		communityURI := addressedCommunity(env)
		if communityURI == "" {
			communityURI = moderatorCollectionOwner(env.Target)
		}
		err, community := in.fetcher.ResolveCommunity(communityURI, in.counter)
		if err != nil {
			return err
		}
		if err := in.ctx.Store.RemoveModerator(community.Id, objectURI); err != nil {
			return err
		}
		in.ctx.Notifier.NotifyLocal("moderator_removed", objectURI)
		return nil
	}

	if err, post := in.ctx.Store.ReadPostByURI(objectURI); err == nil && post != nil {
		if err := in.ctx.Store.SetPostRemoved(objectURI, true); err != nil {
			return err
		}
		in.ctx.Notifier.NotifyLocal("post_removed", objectURI)
		return nil
	}
	if err, comment := in.ctx.Store.ReadCommentByURI(objectURI); err == nil && comment != nil {
		if err := in.ctx.Store.SetCommentRemoved(objectURI, true); err != nil {
			return err
		}
		in.ctx.Notifier.NotifyLocal("comment_removed", objectURI)
		return nil
	}
	return fmt.Errorf("remove %s: object %s: %w", env.ID, objectURI, ErrNotFound)
}

// addHandler grants moderator rights: Add with the community's
// moderator collection as target
type addHandler struct{}

func (addHandler) verify(in *inboxChain, env *Envelope) error {
	if env.ObjectURI() == "" {
		return fmt.Errorf("add %s has no object", env.ID)
	}
	if env.Target == "" {
		return fmt.Errorf("add %s has no target collection", env.ID)
	}
	communityURI := addressedCommunity(env)
	if communityURI == "" {
		communityURI = moderatorCollectionOwner(env.Target)
	}
	return verifyModerator(in, env.Actor, communityURI)
}

func (addHandler) receive(in *inboxChain, env *Envelope) error {
	communityURI := addressedCommunity(env)
	if communityURI == "" {
		communityURI = moderatorCollectionOwner(env.Target)
	}
	err, community := in.fetcher.ResolveCommunity(communityURI, in.counter)
	if err != nil {
		return err
	}

	mod := &domain.CommunityModerator{
		Id:          uuid.New(),
		CommunityId: community.Id,
		ActorURI:    env.ObjectURI(),
		CreatedAt:   time.Now(),
	}
	if err := in.ctx.Store.AddModerator(mod); err != nil {
		return err
	}
	in.ctx.Notifier.NotifyLocal("moderator_added", mod.ActorURI)
	return nil
}

// blockHandler bans an actor from a community
type blockHandler struct{}

func (blockHandler) verify(in *inboxChain, env *Envelope) error {
	if env.ObjectURI() == "" {
		return fmt.Errorf("block %s has no object", env.ID)
	}
	return verifyModerator(in, env.Actor, addressedCommunity(env))
}

func (blockHandler) receive(in *inboxChain, env *Envelope) error {
	err, community := in.fetcher.ResolveCommunity(addressedCommunity(env), in.counter)
	if err != nil {
		return err
	}

	ban := &domain.Ban{
		Id:          uuid.New(),
		CommunityId: community.Id,
		ActorURI:    env.ObjectURI(),
		CreatedAt:   time.Now(),
	}
	if err := in.ctx.Store.CreateBan(ban); err != nil {
		return err
	}
	in.ctx.Notifier.NotifyLocal("ban", ban.ActorURI)
	return nil
}

// flagHandler files a report against a post or comment for the local
// moderators
type flagHandler struct{}

func (flagHandler) verify(in *inboxChain, env *Envelope) error {
	objectURI := env.ObjectURI()
	if objectURI == "" {
		return fmt.Errorf("flag %s has no object", env.ID)
	}
	err, _, _ := in.fetcher.ResolveThreadTarget(objectURI, in.counter)
	return err
}

func (flagHandler) receive(in *inboxChain, env *Envelope) error {
	report := &domain.Report{
		Id:          uuid.New(),
		ObjectURI:   env.ObjectURI(),
		ReporterURI: env.Actor,
		Reason:      env.Summary,
		CreatedAt:   time.Now(),
	}
	if err := in.ctx.Store.CreateReport(report); err != nil {
		return err
	}
	in.ctx.Notifier.NotifyLocal("report", report.ObjectURI)
	return nil
}

// moderatorCollectionOwner maps ".../c/name/moderators" back onto the
// community actor uri
func moderatorCollectionOwner(target string) string {
	const suffix = "/moderators"
	if len(target) > len(suffix) && target[len(target)-len(suffix):] == suffix {
		return target[:len(target)-len(suffix)]
	}
	return ""
}
