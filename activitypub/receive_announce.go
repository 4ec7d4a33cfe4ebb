package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
)

// announceHandler unwraps an activity relayed by a community we
// follow. The community's signature on the outer request vouches for
// the inner activity, so the inner one is dispatched without its own
// signature check, against the inner actor and under the same request
// counter.
type announceHandler struct{}

func (announceHandler) verify(in *inboxChain, env *Envelope) error {
	err, community := in.fetcher.ResolveCommunity(env.Actor, in.counter)
	if err != nil {
		return fmt.Errorf("announce %s: actor is not a community: %w", env.ID, err)
	}
	if community.Local {
		return fmt.Errorf("announce %s: local community %s cannot announce to itself", env.ID, community.Name)
	}

	err, inner := env.InnerEnvelope()
	if err != nil {
		return err
	}
	if inner.Type == "Announce" {
		return fmt.Errorf("announce %s: nested announce", env.ID)
	}
	if inner.ID == "" || inner.Actor == "" {
		return fmt.Errorf("announce %s: inner activity lacks id or actor", env.ID)
	}
	if _, err := handlerFor(inner.Type); err != nil {
		return err
	}
	return nil
}

func (announceHandler) receive(in *inboxChain, env *Envelope) error {
	err, inner := env.InnerEnvelope()
	if err != nil {
		return err
	}

	if err, seen := in.ctx.Store.ReadActivityByURI(inner.ID); err == nil && seen != nil {
		log.Printf("Inbox: announced activity %s already applied", inner.ID)
		return nil
	}

	h, err := handlerFor(inner.Type)
	if err != nil {
		return err
	}

	err, innerSender := in.fetcher.ResolveActor(inner.Actor, in.counter)
	if err != nil {
		return err
	}

	innerChain := &inboxChain{
		ctx:     in.ctx,
		fetcher: in.fetcher,
		counter: in.counter,
		sender:  innerSender,
	}

	if err := h.verify(innerChain, inner); err != nil {
		return fmt.Errorf("%w: announced %s %s: %v", ErrVerificationFailed, inner.Type, inner.ID, err)
	}
	if err := h.receive(innerChain, inner); err != nil {
		return err
	}

	row := &domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  inner.ID,
		ActivityType: inner.Type,
		ActorURI:     inner.Actor,
		ObjectURI:    inner.ObjectURI(),
		RawJSON:      string(inner.Raw()),
		Local:        false,
		CreatedAt:    time.Now(),
	}
	if err := in.ctx.Store.CreateActivity(row); err != nil {
		log.Printf("Inbox: recording announced activity %s failed: %v", inner.ID, err)
	}
	return nil
}
