package activitypub

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
)

// followHandler processes an incoming Follow of a local user or
// community. Follows are auto-accepted; closed communities are a
// registration concern, not a federation one.
type followHandler struct{}

func (followHandler) verify(in *inboxChain, env *Envelope) error {
	targetURI := env.ObjectURI()
	if targetURI == "" {
		return fmt.Errorf("follow %s has no object", env.ID)
	}
	if !in.ctx.IsLocalURI(targetURI) {
		return fmt.Errorf("follow %s targets %s, which does not live here", env.ID, targetURI)
	}

	if err, community := in.ctx.Store.ReadCommunityByURI(targetURI); err == nil && community != nil {
		if community.Deleted || community.Removed {
			return fmt.Errorf("follow %s: community %s is gone", env.ID, community.Name)
		}
		err, banned := in.ctx.Store.IsBanned(community.Id, env.Actor)
		if err != nil {
			return err
		}
		if banned {
			return fmt.Errorf("follow %s: %s is banned from %s", env.ID, env.Actor, community.Name)
		}
		return nil
	}

	if err, acc := in.ctx.Store.ReadAccByUsername(lastPathSegment(targetURI)); err != nil || acc == nil {
		return fmt.Errorf("follow %s: target %s: %w", env.ID, targetURI, ErrNotFound)
	}
	return nil
}

func (followHandler) receive(in *inboxChain, env *Envelope) error {
	targetURI := env.ObjectURI()

	err, existing := in.ctx.Store.ReadFollowByActors(env.Actor, targetURI)
	if err == nil && existing != nil {
		// refollowing is idempotent but still answered
		return NewOutbox(in.ctx).SendAcceptFollow(existing, env)
	}

	follow := &domain.Follow{
		Id:        uuid.New(),
		ActorURI:  env.Actor,
		TargetURI: targetURI,
		URI:       env.ID,
		Accepted:  true,
		CreatedAt: time.Now(),
	}
	if err := in.ctx.Store.CreateFollow(follow); err != nil {
		return err
	}

	in.ctx.Notifier.NotifyLocal("follow", targetURI)
	return NewOutbox(in.ctx).SendAcceptFollow(follow, env)
}

// acceptHandler confirms a Follow this instance sent earlier
type acceptHandler struct{}

func (acceptHandler) verify(in *inboxChain, env *Envelope) error {
	err, inner := env.InnerEnvelope()
	if err != nil {
		return err
	}
	if inner.Type != "Follow" {
		return fmt.Errorf("accept %s wraps a %s, not a Follow", env.ID, inner.Type)
	}

	err, follow := in.ctx.Store.ReadFollowByURI(inner.ID)
	if err != nil || follow == nil {
		return fmt.Errorf("accept %s: unknown follow %s", env.ID, inner.ID)
	}
	if !in.ctx.IsLocalURI(follow.ActorURI) {
		return fmt.Errorf("accept %s: follow %s was not sent from here", env.ID, inner.ID)
	}
	if follow.TargetURI != env.Actor {
		return fmt.Errorf("accept %s: %s cannot accept a follow of %s", env.ID, env.Actor, follow.TargetURI)
	}
	return nil
}

func (acceptHandler) receive(in *inboxChain, env *Envelope) error {
	err, inner := env.InnerEnvelope()
	if err != nil {
		return err
	}
	if err := in.ctx.Store.AcceptFollowByURI(inner.ID); err != nil {
		return err
	}
	in.ctx.Notifier.NotifyLocal("follow_accepted", env.Actor)
	return nil
}
