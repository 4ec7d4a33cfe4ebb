package activitypub

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
	"github.com/okutkin/veche/util"
)

const ContentType = "application/activity+json"

// Storage is the narrow contract the federation engine requires from the
// database layer. *db.DB satisfies it; tests use in-memory fakes.
type Storage interface {
	ReadAccByUsername(username string) (error, *domain.Account)

	ReadCommunityByName(name string) (error, *domain.Community)
	ReadCommunityByURI(uri string) (error, *domain.Community)
	CreateCommunity(c *domain.Community) error
	UpdateCommunity(c *domain.Community) error
	SetCommunityRemoved(uri string, removed bool) error
	TombstoneCommunity(uri string) error

	ReadRemoteAccountByURI(uri string) (error, *domain.RemoteAccount)
	ReadRemoteAccountByName(username, domainName string) (error, *domain.RemoteAccount)
	CreateRemoteAccount(acc *domain.RemoteAccount) error
	UpdateRemoteAccount(acc *domain.RemoteAccount) error
	TombstoneRemoteAccount(uri string) error

	ReadPostByURI(uri string) (error, *domain.Post)
	ReadPostById(id uuid.UUID) (error, *domain.Post)
	CreatePost(p *domain.Post) error
	UpdatePost(p *domain.Post) error
	SetPostRemoved(uri string, removed bool) error
	TombstonePost(uri string) error

	ReadCommentByURI(uri string) (error, *domain.Comment)
	CreateComment(c *domain.Comment) error
	UpdateComment(c *domain.Comment) error
	SetCommentRemoved(uri string, removed bool) error
	TombstoneComment(uri string) error

	UpsertVote(v *domain.Vote) error
	DeleteVote(actorURI, objectURI string) error

	CreatePrivateMessage(pm *domain.PrivateMessage) error
	ReadPrivateMessageByURI(uri string) (error, *domain.PrivateMessage)
	UpdatePrivateMessage(pm *domain.PrivateMessage) error
	TombstonePrivateMessage(uri string) error

	CreateReport(r *domain.Report) error
	ResolveReportsByObjectURI(objectURI string) error

	CreateFollow(f *domain.Follow) error
	ReadFollowByURI(uri string) (error, *domain.Follow)
	ReadFollowByActors(actorURI, targetURI string) (error, *domain.Follow)
	AcceptFollowByURI(uri string) error
	DeleteFollowByURI(uri string) error
	DeleteFollowByActors(actorURI, targetURI string) error
	ReadFollowersOf(targetURI string) (error, *[]domain.Follow)

	CreateActivity(a *domain.Activity) error
	ReadActivityByURI(uri string) (error, *domain.Activity)

	AddModerator(mod *domain.CommunityModerator) error
	RemoveModerator(communityId uuid.UUID, actorURI string) error
	IsModerator(communityId uuid.UUID, actorURI string) (error, bool)

	CreateBan(ban *domain.Ban) error
	DeleteBan(communityId uuid.UUID, actorURI string) error
	IsBanned(communityId uuid.UUID, actorURI string) (error, bool)

	CreateDeadDelivery(d *domain.DeadDelivery) error

	MarkInstanceAlive(domainName string) error
	ReadInstanceByDomain(domainName string) (error, *domain.RemoteInstance)
	UpsertInstance(inst *domain.RemoteInstance) error
}

// Notifier receives local-side events from receive steps, fire-and-forget.
// The websocket subsystem owns the real implementation.
type Notifier interface {
	NotifyLocal(event string, objectURI string)
}

// LogNotifier is the default Notifier, it just logs.
type LogNotifier struct{}

func (LogNotifier) NotifyLocal(event string, objectURI string) {
	log.Printf("Notify: %s %s", event, objectURI)
}

// Context holds the process-wide resources of the federation engine.
// Created once at startup and treated as immutable afterwards.
type Context struct {
	Conf     *util.AppConfig
	Store    Storage
	Client   *http.Client
	Queue    *DeliveryQueue
	Notifier Notifier

	// CheckURL decides whether an apub id may be fetched from or
	// delivered to. Defaults to CheckApubID.
	CheckURL func(ctx *Context, u *url.URL) error
}

func NewContext(conf *util.AppConfig, store Storage) *Context {
	ctx := &Context{
		Conf:     conf,
		Store:    store,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Notifier: LogNotifier{},
		CheckURL: CheckApubID,
	}
	ctx.Queue = NewDeliveryQueue(ctx)
	return ctx
}

// Hostname returns the local instance hostname without a port.
func (ctx *Context) Hostname() string {
	host := ctx.Conf.Conf.SslDomain
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// ActorURI builds the canonical id of a local user actor
func (ctx *Context) ActorURI(username string) string {
	return fmt.Sprintf("https://%s/users/%s", ctx.Conf.Conf.SslDomain, username)
}

// CommunityURI builds the canonical id of a local community actor
func (ctx *Context) CommunityURI(name string) string {
	return fmt.Sprintf("https://%s/c/%s", ctx.Conf.Conf.SslDomain, name)
}

// NewObjectURI mints an id for a freshly created local object
func (ctx *Context) NewObjectURI(kind string) string {
	return fmt.Sprintf("https://%s/%s/%s", ctx.Conf.Conf.SslDomain, kind, uuid.New().String())
}

// IsLocalURI reports whether the uri belongs to this instance,
// ignoring any port difference.
func (ctx *Context) IsLocalURI(uri string) bool {
	parsed, err := url.Parse(uri)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	return strings.EqualFold(host, ctx.Hostname())
}

// FetchLimit is the number of outgoing fetches a single inbound
// activity may spend while resolving its objects.
func (ctx *Context) FetchLimit() int {
	return ctx.Conf.Conf.Federation.FetchLimit
}

// NewCounter creates the request counter owned by one inbound
// processing chain. Never shared across concurrent requests.
func (ctx *Context) NewCounter() *RequestCounter {
	return &RequestCounter{limit: ctx.FetchLimit()}
}

// CheckApubID is the default URL admission policy, following the same
// rules on both the fetch and the delivery path: https only, no
// localhost or raw IPs, allowlist/blocklist from config. Local ids are
// always admitted so received activities may nest our own objects.
func CheckApubID(ctx *Context, u *url.URL) error {
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("apub id %q has no host", u)
	}

	if strings.EqualFold(host, ctx.Hostname()) {
		return nil
	}

	if !ctx.Conf.Conf.WithAp {
		return fmt.Errorf("trying to connect with %s, but federation is disabled", host)
	}

	if host == "localhost" {
		return fmt.Errorf("invalid hostname: %s", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		return fmt.Errorf("invalid hostname: %s", host)
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("invalid apub id scheme: %s", u.Scheme)
	}

	allowed := ctx.Conf.Conf.Federation.AllowedInstances
	blocked := ctx.Conf.Conf.Federation.BlockedInstances

	if len(allowed) > 0 {
		for _, a := range allowed {
			if strings.EqualFold(a, host) {
				return nil
			}
		}
		return fmt.Errorf("%s not in federation allowlist", host)
	}

	for _, b := range blocked {
		if strings.EqualFold(b, host) {
			return fmt.Errorf("%s is in federation blocklist", host)
		}
	}

	return nil
}

// checkURI parses and admission-checks an apub id in one step.
func (ctx *Context) checkURI(uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid apub id %q: %w", uri, err)
	}
	return ctx.CheckURL(ctx, parsed)
}
