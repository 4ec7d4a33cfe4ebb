package activitypub

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
)

// createHandler processes Create and Update of the three content
// shapes: Page (post), Note (comment) and ChatMessage (private
// message). The object type decides what gets stored, the update flag
// decides whether an existing row is edited.
type createHandler struct {
	update bool
}

func (h createHandler) verify(in *inboxChain, env *Envelope) error {
	switch env.ObjectType() {
	case "Page":
		var page PageObject
		if err := env.DecodeObject(&page); err != nil {
			return err
		}
		return h.verifyCommunityContent(in, env, page.AttributedTo, page.Audience, page.To, page.Cc)
	case "Note":
		var note NoteObject
		if err := env.DecodeObject(&note); err != nil {
			return err
		}
		if note.InReplyTo == "" {
			return fmt.Errorf("note %s has no inReplyTo", note.ID)
		}
		return h.verifyCommunityContent(in, env, note.AttributedTo, note.Audience, note.To, note.Cc)
	case "ChatMessage":
		var msg ChatMessageObject
		if err := env.DecodeObject(&msg); err != nil {
			return err
		}
		if msg.AttributedTo != env.Actor {
			return fmt.Errorf("chat message %s attributed to %s but sent by %s", msg.ID, msg.AttributedTo, env.Actor)
		}
		if len(msg.To) != 1 {
			return fmt.Errorf("chat message %s must have exactly one recipient", msg.ID)
		}
		if !in.ctx.IsLocalURI(msg.To[0]) {
			return fmt.Errorf("chat message %s recipient %s does not live here", msg.ID, msg.To[0])
		}
		err, acc := in.ctx.Store.ReadAccByUsername(lastPathSegment(msg.To[0]))
		if err != nil || acc == nil {
			return fmt.Errorf("chat message %s: recipient %s: %w", msg.ID, msg.To[0], ErrNotFound)
		}
		return nil
	}
	return fmt.Errorf("%w: object type %q", ErrUnsupportedActivity, env.ObjectType())
}

// verifyCommunityContent runs the checks shared by posts and comments:
// attribution matches the sending actor, a community is addressed and
// resolvable, and the sender is not banned there
func (createHandler) verifyCommunityContent(in *inboxChain, env *Envelope, attributedTo, audience string, to, cc []string) error {
	if attributedTo != env.Actor {
		return fmt.Errorf("object attributed to %s but sent by %s", attributedTo, env.Actor)
	}

	communityURI := audience
	if communityURI == "" {
		communityURI = firstNonPublic(to, cc)
	}
	if communityURI == "" {
		return fmt.Errorf("no community addressed")
	}

	err, community := in.fetcher.ResolveCommunity(communityURI, in.counter)
	if err != nil {
		return err
	}
	if community.Removed || community.Deleted {
		return fmt.Errorf("community %s is gone", community.Name)
	}

	err, banned := in.ctx.Store.IsBanned(community.Id, env.Actor)
	if err != nil {
		return err
	}
	if banned {
		return fmt.Errorf("%s is banned from %s", env.Actor, community.Name)
	}
	return nil
}

func (h createHandler) receive(in *inboxChain, env *Envelope) error {
	switch env.ObjectType() {
	case "Page":
		var page PageObject
		if err := env.DecodeObject(&page); err != nil {
			return err
		}
		return h.receivePage(in, &page)
	case "Note":
		var note NoteObject
		if err := env.DecodeObject(&note); err != nil {
			return err
		}
		return h.receiveNote(in, &note)
	case "ChatMessage":
		var msg ChatMessageObject
		if err := env.DecodeObject(&msg); err != nil {
			return err
		}
		return h.receiveChatMessage(in, &msg)
	}
	return fmt.Errorf("%w: object type %q", ErrUnsupportedActivity, env.ObjectType())
}

func (h createHandler) receivePage(in *inboxChain, page *PageObject) error {
	err, existing := in.ctx.Store.ReadPostByURI(page.ID)
	if err == nil && existing != nil {
		if !h.update {
			// redelivered create, nothing to do
			return nil
		}
		existing.Title = page.Name
		existing.Body = page.Content
		existing.URL = page.URL
		if page.CommentsEnabled != nil {
			existing.Locked = !*page.CommentsEnabled
		}
		existing.UpdatedAt = parseApubTime(page.Updated)
		if err := in.ctx.Store.UpdatePost(existing); err != nil {
			return err
		}
		in.ctx.Notifier.NotifyLocal("post_updated", page.ID)
		return nil
	}

	err, post := in.fetcher.storePostFromPage(page, in.counter)
	if err != nil {
		return err
	}
	in.ctx.Notifier.NotifyLocal("post", post.ObjectURI)
	return nil
}

func (h createHandler) receiveNote(in *inboxChain, note *NoteObject) error {
	err, existing := in.ctx.Store.ReadCommentByURI(note.ID)
	if err == nil && existing != nil {
		if !h.update {
			return nil
		}
		existing.Body = note.Content
		existing.UpdatedAt = parseApubTime(note.Updated)
		if err := in.ctx.Store.UpdateComment(existing); err != nil {
			return err
		}
		in.ctx.Notifier.NotifyLocal("comment_updated", note.ID)
		return nil
	}

	err, post, parent := in.fetcher.ResolveThreadTarget(note.InReplyTo, in.counter)
	if err != nil {
		return err
	}

	comment := &domain.Comment{
		Id:         uuid.New(),
		CreatorURI: note.AttributedTo,
		ObjectURI:  note.ID,
		Body:       note.Content,
		Local:      false,
		CreatedAt:  parseApubTime(note.Published),
		UpdatedAt:  parseApubTime(note.Updated),
	}
	if parent != nil {
		comment.PostId = parent.PostId
		comment.ParentId = parent.Id
	} else {
		if post.Locked {
			return fmt.Errorf("post %s is locked", post.ObjectURI)
		}
		comment.PostId = post.Id
	}

	if err := in.ctx.Store.CreateComment(comment); err != nil {
		return err
	}
	in.ctx.Notifier.NotifyLocal("comment", note.ID)
	return nil
}

func (h createHandler) receiveChatMessage(in *inboxChain, msg *ChatMessageObject) error {
	err, existing := in.ctx.Store.ReadPrivateMessageByURI(msg.ID)
	if err == nil && existing != nil {
		if !h.update {
			return nil
		}
		existing.Content = msg.Content
		existing.UpdatedAt = parseApubTime(msg.Updated)
		if err := in.ctx.Store.UpdatePrivateMessage(existing); err != nil {
			return err
		}
		in.ctx.Notifier.NotifyLocal("private_message_updated", msg.ID)
		return nil
	}

	pm := &domain.PrivateMessage{
		Id:           uuid.New(),
		ObjectURI:    msg.ID,
		CreatorURI:   msg.AttributedTo,
		RecipientURI: msg.To[0],
		Content:      msg.Content,
		CreatedAt:    parseApubTime(msg.Published),
		UpdatedAt:    parseApubTime(msg.Updated),
	}
	if err := in.ctx.Store.CreatePrivateMessage(pm); err != nil {
		return err
	}
	in.ctx.Notifier.NotifyLocal("private_message", msg.ID)
	return nil
}
