package activitypub

import (
	"fmt"
)

// deleteHandler processes creator-side deletions: a post, comment or
// private message by its author, a remote actor deleting itself, or a
// remote community deleting itself. Deletions tombstone the row, they
// never erase it, so redeliveries and stray references stay resolvable.
type deleteHandler struct{}

func (deleteHandler) verify(in *inboxChain, env *Envelope) error {
	objectURI := env.ObjectURI()
	if objectURI == "" {
		return fmt.Errorf("delete %s has no object", env.ID)
	}

	// self-deletion of the sending actor or its community
	if objectURI == env.Actor {
		return nil
	}

	if err, post := in.ctx.Store.ReadPostByURI(objectURI); err == nil && post != nil {
		if post.CreatorURI != env.Actor {
			return fmt.Errorf("%s cannot delete post by %s", env.Actor, post.CreatorURI)
		}
		return nil
	}
	if err, comment := in.ctx.Store.ReadCommentByURI(objectURI); err == nil && comment != nil {
		if comment.CreatorURI != env.Actor {
			return fmt.Errorf("%s cannot delete comment by %s", env.Actor, comment.CreatorURI)
		}
		return nil
	}
	if err, pm := in.ctx.Store.ReadPrivateMessageByURI(objectURI); err == nil && pm != nil {
		if pm.CreatorURI != env.Actor {
			return fmt.Errorf("%s cannot delete message by %s", env.Actor, pm.CreatorURI)
		}
		return nil
	}

	return fmt.Errorf("delete %s: object %s: %w", env.ID, objectURI, ErrNotFound)
}

func (deleteHandler) receive(in *inboxChain, env *Envelope) error {
	objectURI := env.ObjectURI()

	if objectURI == env.Actor {
		if err, community := in.ctx.Store.ReadCommunityByURI(objectURI); err == nil && community != nil {
			in.ctx.Notifier.NotifyLocal("community_deleted", objectURI)
			return in.ctx.Store.TombstoneCommunity(objectURI)
		}
		in.ctx.Notifier.NotifyLocal("actor_deleted", objectURI)
		return in.ctx.Store.TombstoneRemoteAccount(objectURI)
	}

	if err, post := in.ctx.Store.ReadPostByURI(objectURI); err == nil && post != nil {
		in.ctx.Notifier.NotifyLocal("post_deleted", objectURI)
		return in.ctx.Store.TombstonePost(objectURI)
	}
	if err, comment := in.ctx.Store.ReadCommentByURI(objectURI); err == nil && comment != nil {
		in.ctx.Notifier.NotifyLocal("comment_deleted", objectURI)
		return in.ctx.Store.TombstoneComment(objectURI)
	}
	if err, pm := in.ctx.Store.ReadPrivateMessageByURI(objectURI); err == nil && pm != nil {
		in.ctx.Notifier.NotifyLocal("private_message_deleted", objectURI)
		return in.ctx.Store.TombstonePrivateMessage(objectURI)
	}

	return fmt.Errorf("delete %s: object %s: %w", env.ID, objectURI, ErrNotFound)
}
