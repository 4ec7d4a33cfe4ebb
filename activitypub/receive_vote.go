package activitypub

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
)

// voteHandler processes Like and Dislike on a post or comment. A vote
// replaces the actor's previous vote on the same object, so flipping
// from like to dislike is one activity, not two.
type voteHandler struct {
	score int
}

func (h voteHandler) verify(in *inboxChain, env *Envelope) error {
	objectURI := env.ObjectURI()
	if objectURI == "" {
		return fmt.Errorf("%s %s has no object", env.Type, env.ID)
	}

	err, post, comment := in.fetcher.ResolveThreadTarget(objectURI, in.counter)
	if err != nil {
		return err
	}

	var communityId = uuid.Nil
	if post != nil {
		communityId = post.CommunityId
	} else if comment != nil {
		if err, p := in.ctx.Store.ReadPostById(comment.PostId); err == nil && p != nil {
			communityId = p.CommunityId
		}
	}
	if communityId != uuid.Nil {
		err, banned := in.ctx.Store.IsBanned(communityId, env.Actor)
		if err != nil {
			return err
		}
		if banned {
			return fmt.Errorf("%s is banned from the community of %s", env.Actor, objectURI)
		}
	}
	return nil
}

func (h voteHandler) receive(in *inboxChain, env *Envelope) error {
	vote := &domain.Vote{
		Id:        uuid.New(),
		ActorURI:  env.Actor,
		ObjectURI: env.ObjectURI(),
		Score:     h.score,
		CreatedAt: time.Now(),
	}
	if err := in.ctx.Store.UpsertVote(vote); err != nil {
		return err
	}
	in.ctx.Notifier.NotifyLocal("vote", vote.ObjectURI)
	return nil
}
