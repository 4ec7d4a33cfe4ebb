package web

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okutkin/veche/activitypub"
	"github.com/okutkin/veche/db"
	"github.com/okutkin/veche/util"
)

// GetPostObject renders a local post as an ActivityPub Page, or a
// Tombstone when it was deleted. The bool result tells the caller to
// answer 410 for tombstones.
func GetPostObject(postId uuid.UUID, conf *util.AppConfig) (error, string, bool) {
	database := db.GetDB()
	err, post := database.ReadPostById(postId)
	if err != nil || post == nil {
		return fmt.Errorf("post %s not found", postId), "{}", false
	}

	if post.Deleted || post.Removed {
		data, _ := json.Marshal(activitypub.TombstoneObject{
			ID:         post.ObjectURI,
			Type:       "Tombstone",
			FormerType: "Page",
		})
		return nil, string(data), true
	}

	err, community := database.ReadCommunityById(post.CommunityId)
	if err != nil || community == nil {
		return fmt.Errorf("post %s: community missing", postId), "{}", false
	}

	commentsEnabled := !post.Locked
	page := activitypub.PageObject{
		Context:         activitypub.ActivityContext,
		ID:              post.ObjectURI,
		Type:            "Page",
		AttributedTo:    post.CreatorURI,
		To:              []string{activitypub.PublicURI},
		Cc:              []string{community.ActorURI},
		Audience:        community.ActorURI,
		Name:            post.Title,
		Content:         post.Body,
		URL:             post.URL,
		CommentsEnabled: &commentsEnabled,
		Published:       post.CreatedAt.UTC().Format(time.RFC3339),
	}
	if post.UpdatedAt.After(post.CreatedAt) {
		page.Updated = post.UpdatedAt.UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(page)
	if err != nil {
		return err, "{}", false
	}
	return nil, string(data), false
}

// GetCommentObject renders a local comment as an ActivityPub Note
func GetCommentObject(commentId uuid.UUID, conf *util.AppConfig) (error, string, bool) {
	database := db.GetDB()
	err, comment := database.ReadCommentById(commentId)
	if err != nil || comment == nil {
		return fmt.Errorf("comment %s not found", commentId), "{}", false
	}

	if comment.Deleted || comment.Removed {
		data, _ := json.Marshal(activitypub.TombstoneObject{
			ID:         comment.ObjectURI,
			Type:       "Tombstone",
			FormerType: "Note",
		})
		return nil, string(data), true
	}

	err, post := database.ReadPostById(comment.PostId)
	if err != nil || post == nil {
		return fmt.Errorf("comment %s: post missing", commentId), "{}", false
	}

	inReplyTo := post.ObjectURI
	if comment.ParentId != uuid.Nil {
		if err, parent := database.ReadCommentById(comment.ParentId); err == nil && parent != nil {
			inReplyTo = parent.ObjectURI
		}
	}

	err, community := database.ReadCommunityById(post.CommunityId)
	if err != nil || community == nil {
		return fmt.Errorf("comment %s: community missing", commentId), "{}", false
	}

	note := activitypub.NoteObject{
		Context:      activitypub.ActivityContext,
		ID:           comment.ObjectURI,
		Type:         "Note",
		AttributedTo: comment.CreatorURI,
		To:           []string{activitypub.PublicURI},
		Cc:           []string{community.ActorURI},
		Audience:     community.ActorURI,
		InReplyTo:    inReplyTo,
		Content:      comment.Body,
		Published:    comment.CreatedAt.UTC().Format(time.RFC3339),
	}
	if comment.UpdatedAt.After(comment.CreatedAt) {
		note.Updated = comment.UpdatedAt.UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(note)
	if err != nil {
		return err, "{}", false
	}
	return nil, string(data), false
}

// GetFollowersCollection renders the follower collection of an actor,
// count only. Follower identities stay private.
func GetFollowersCollection(actorURI string) (error, string) {
	err, follows := db.GetDB().ReadFollowersOf(actorURI)
	if err != nil {
		return err, "{}"
	}

	total := 0
	if follows != nil {
		for _, fl := range *follows {
			if fl.Accepted {
				total++
			}
		}
	}

	collection := map[string]interface{}{
		"@context":   "https://www.w3.org/ns/activitystreams",
		"id":         actorURI + "/followers",
		"type":       "OrderedCollection",
		"totalItems": total,
	}
	data, err := json.Marshal(collection)
	if err != nil {
		return err, "{}"
	}
	return nil, string(data)
}
