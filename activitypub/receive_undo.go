package activitypub

import (
	"fmt"
)

// undoHandler retracts an earlier activity by the same actor. The
// inner activity decides what gets reversed; anything outside the
// closed set is rejected.
type undoHandler struct{}

func (undoHandler) verify(in *inboxChain, env *Envelope) error {
	err, inner := env.InnerEnvelope()
	if err != nil {
		return err
	}
	if inner.Actor != "" && inner.Actor != env.Actor {
		return fmt.Errorf("undo %s: %s cannot undo an activity by %s", env.ID, env.Actor, inner.Actor)
	}

	switch inner.Type {
	case "Follow", "Like", "Dislike", "Flag":
		return nil
	case "Block", "Remove":
		// mod actions are reversed under the same authority they
		// were applied with
		communityURI := addressedCommunity(env)
		if communityURI == "" {
			communityURI = addressedCommunity(inner)
		}
		return verifyModerator(in, env.Actor, communityURI)
	}
	return fmt.Errorf("%w: undo of %s", ErrUnsupportedActivity, inner.Type)
}

func (undoHandler) receive(in *inboxChain, env *Envelope) error {
	err, inner := env.InnerEnvelope()
	if err != nil {
		return err
	}
	objectURI := inner.ObjectURI()

	switch inner.Type {
	case "Follow":
		if err := in.ctx.Store.DeleteFollowByActors(env.Actor, objectURI); err != nil {
			return err
		}
		in.ctx.Notifier.NotifyLocal("unfollow", objectURI)
		return nil
	case "Like", "Dislike":
		if err := in.ctx.Store.DeleteVote(env.Actor, objectURI); err != nil {
			return err
		}
		in.ctx.Notifier.NotifyLocal("vote_retracted", objectURI)
		return nil
	case "Flag":
		if err := in.ctx.Store.ResolveReportsByObjectURI(objectURI); err != nil {
			return err
		}
		in.ctx.Notifier.NotifyLocal("report_resolved", objectURI)
		return nil
	case "Block":
		communityURI := addressedCommunity(env)
		if communityURI == "" {
			communityURI = addressedCommunity(inner)
		}
		err, community := in.fetcher.ResolveCommunity(communityURI, in.counter)
		if err != nil {
			return err
		}
		if err := in.ctx.Store.DeleteBan(community.Id, objectURI); err != nil {
			return err
		}
		in.ctx.Notifier.NotifyLocal("unban", objectURI)
		return nil
	case "Remove":
		return restoreThreadTarget(in, objectURI)
	}
	return fmt.Errorf("%w: undo of %s", ErrUnsupportedActivity, inner.Type)
}

// restoreThreadTarget lifts a moderator removal from a post or comment
func restoreThreadTarget(in *inboxChain, objectURI string) error {
	if err, post := in.ctx.Store.ReadPostByURI(objectURI); err == nil && post != nil {
		if err := in.ctx.Store.SetPostRemoved(objectURI, false); err != nil {
			return err
		}
		in.ctx.Notifier.NotifyLocal("post_restored", objectURI)
		return nil
	}
	if err, comment := in.ctx.Store.ReadCommentByURI(objectURI); err == nil && comment != nil {
		if err := in.ctx.Store.SetCommentRemoved(objectURI, false); err != nil {
			return err
		}
		in.ctx.Notifier.NotifyLocal("comment_restored", objectURI)
		return nil
	}
	return fmt.Errorf("restore %s: %w", objectURI, ErrNotFound)
}
