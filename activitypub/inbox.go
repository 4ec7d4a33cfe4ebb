package activitypub

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
)

// inboxChain carries the per-request state every handler step sees:
// the resolved sender, the fetcher and the one request counter owned
// by this processing chain
type inboxChain struct {
	ctx     *Context
	fetcher *Fetcher
	counter *RequestCounter
	sender  *domain.RemoteAccount
}

// handler is one supported activity variant. verify inspects and
// resolves but never mutates domain state; receive applies the
// mutation and is only called after verify succeeded.
type handler interface {
	verify(in *inboxChain, env *Envelope) error
	receive(in *inboxChain, env *Envelope) error
}

// handlerFor maps an activity type onto its handler. The set is
// closed: anything else is rejected, not silently dropped on the
// floor halfway through.
func handlerFor(activityType string) (handler, error) {
	switch activityType {
	case "Follow":
		return followHandler{}, nil
	case "Accept":
		return acceptHandler{}, nil
	case "Undo":
		return undoHandler{}, nil
	case "Create":
		return createHandler{}, nil
	case "Update":
		return createHandler{update: true}, nil
	case "Delete":
		return deleteHandler{}, nil
	case "Like":
		return voteHandler{score: 1}, nil
	case "Dislike":
		return voteHandler{score: -1}, nil
	case "Announce":
		return announceHandler{}, nil
	case "Remove":
		return removeHandler{}, nil
	case "Add":
		return addHandler{}, nil
	case "Block":
		return blockHandler{}, nil
	case "Flag":
		return flagHandler{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedActivity, activityType)
	}
}

// HandleInbox runs the full reception pipeline for one delivered
// activity: parse, resolve the sender, check the HTTP signature and
// body digest, deduplicate, verify, receive, and finally fan out
// through a local community when one is addressed. It returns the HTTP
// status the transport layer should answer with.
func HandleInbox(ctx *Context, r *http.Request, body []byte) (int, error) {
	err, env := ParseActivity(body)
	if err != nil {
		return http.StatusBadRequest, err
	}

	h, err := handlerFor(env.Type)
	if err != nil {
		return http.StatusBadRequest, err
	}

	if err := ctx.checkURI(env.ID); err != nil {
		return http.StatusBadRequest, err
	}
	if err := ctx.checkURI(env.Actor); err != nil {
		return http.StatusBadRequest, err
	}

	in := &inboxChain{
		ctx:     ctx,
		fetcher: NewFetcher(ctx),
		counter: ctx.NewCounter(),
	}

	err, sender := in.fetcher.ResolveActor(env.Actor, in.counter)
	if err != nil {
		return http.StatusBadRequest, fmt.Errorf("inbox: resolving actor %s: %w", env.Actor, err)
	}
	in.sender = sender

	signer, err := VerifyRequest(r, sender.PublicKeyPem)
	if err != nil {
		return http.StatusUnauthorized, err
	}
	if err := VerifyDigest(r, body); err != nil {
		return http.StatusUnauthorized, err
	}
	if signer != env.Actor {
		return http.StatusUnauthorized,
			fmt.Errorf("%w: key of %s cannot sign for %s", ErrInvalidSignature, signer, env.Actor)
	}

	// remotes redeliver until they see success, the id makes
	// reprocessing a no-op
	if err, seen := ctx.Store.ReadActivityByURI(env.ID); err == nil && seen != nil {
		log.Printf("Inbox: duplicate activity %s, already applied", env.ID)
		return http.StatusOK, nil
	}

	if err := h.verify(in, env); err != nil {
		return http.StatusBadRequest, fmt.Errorf("%w: %s %s: %v", ErrVerificationFailed, env.Type, env.ID, err)
	}

	if err := h.receive(in, env); err != nil {
		return http.StatusInternalServerError, fmt.Errorf("inbox: receiving %s %s: %w", env.Type, env.ID, err)
	}

	row := &domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  env.ID,
		ActivityType: env.Type,
		ActorURI:     env.Actor,
		ObjectURI:    env.ObjectURI(),
		RawJSON:      string(body),
		Local:        false,
		CreatedAt:    time.Now(),
	}
	if err := ctx.Store.CreateActivity(row); err != nil {
		log.Printf("Inbox: recording activity %s failed: %v", env.ID, err)
	}

	maybeAnnounce(ctx, env)

	return http.StatusAccepted, nil
}

// maybeAnnounce forwards an applied activity to the followers of the
// addressed community when that community lives here. Follow state
// and Announce itself are never relayed.
func maybeAnnounce(ctx *Context, env *Envelope) {
	if env.Type == "Announce" || env.Type == "Follow" || env.Type == "Accept" {
		return
	}
	// an unfollow is follow state too, not community content
	if env.Type == "Undo" {
		if err, inner := env.InnerEnvelope(); err == nil && inner.Type == "Follow" {
			return
		}
	}

	communityURI := addressedCommunity(env)
	if communityURI == "" || !ctx.IsLocalURI(communityURI) {
		return
	}

	err, community := ctx.Store.ReadCommunityByURI(communityURI)
	if err != nil || community == nil || !community.Local {
		return
	}

	if err := NewOutbox(ctx).AnnounceToFollowers(community, env); err != nil {
		log.Printf("Inbox: announcing %s through %s failed: %v", env.ID, community.Name, err)
	}
}

// addressedCommunity extracts the community an activity targets from
// its addressing fields
func addressedCommunity(env *Envelope) string {
	var audience struct {
		Audience string `json:"audience"`
	}
	if env.DecodeObject(&audience) == nil && audience.Audience != "" {
		return audience.Audience
	}
	return firstNonPublic(env.To, env.Cc)
}

// IsRejection reports whether an inbox error is a permanent rejection
// the remote should not retry
func IsRejection(err error) bool {
	return errors.Is(err, ErrVerificationFailed) ||
		errors.Is(err, ErrUnsupportedActivity) ||
		errors.Is(err, ErrInvalidSignature)
}
