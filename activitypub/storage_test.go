package activitypub

import (
	"database/sql"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okutkin/veche/domain"
	"github.com/okutkin/veche/util"
)

var _ Storage = (*fakeStore)(nil)

// fakeStore is an in-memory Storage used across the package tests
type fakeStore struct {
	mu sync.Mutex

	accounts    map[string]*domain.Account       // by username
	remotes     map[string]*domain.RemoteAccount // by actor uri
	communities map[string]*domain.Community     // by actor uri
	posts       map[string]*domain.Post          // by object uri
	comments    map[string]*domain.Comment       // by object uri
	messages    map[string]*domain.PrivateMessage
	activities  map[string]*domain.Activity
	votes       map[string]*domain.Vote // actor uri + "|" + object uri
	follows     []*domain.Follow
	reports     []*domain.Report
	moderators  map[string]bool // community id + "|" + actor uri
	bans        map[string]bool
	dead        []*domain.DeadDelivery
	instances   map[string]*domain.RemoteInstance
	alive       map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:    make(map[string]*domain.Account),
		remotes:     make(map[string]*domain.RemoteAccount),
		communities: make(map[string]*domain.Community),
		posts:       make(map[string]*domain.Post),
		comments:    make(map[string]*domain.Comment),
		messages:    make(map[string]*domain.PrivateMessage),
		activities:  make(map[string]*domain.Activity),
		votes:       make(map[string]*domain.Vote),
		moderators:  make(map[string]bool),
		bans:        make(map[string]bool),
		instances:   make(map[string]*domain.RemoteInstance),
		alive:       make(map[string]int),
	}
}

func (s *fakeStore) ReadAccByUsername(username string) (error, *domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[username]; ok {
		return nil, acc
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) ReadCommunityByName(name string) (error, *domain.Community) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.communities {
		if c.Name == name && c.Local {
			return nil, c
		}
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) ReadCommunityByURI(uri string) (error, *domain.Community) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.communities[uri]; ok {
		return nil, c
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) CreateCommunity(c *domain.Community) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.communities[c.ActorURI] = c
	return nil
}

func (s *fakeStore) UpdateCommunity(c *domain.Community) error {
	return s.CreateCommunity(c)
}

func (s *fakeStore) SetCommunityRemoved(uri string, removed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.communities[uri]; ok {
		c.Removed = removed
	}
	return nil
}

func (s *fakeStore) TombstoneCommunity(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.communities[uri]; ok {
		c.Deleted = true
	}
	return nil
}

func (s *fakeStore) ReadRemoteAccountByURI(uri string) (error, *domain.RemoteAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.remotes[uri]; ok {
		return nil, acc
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) ReadRemoteAccountByName(username, domainName string) (error, *domain.RemoteAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.remotes {
		if acc.Username == username && acc.Domain == domainName {
			return nil, acc
		}
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) CreateRemoteAccount(acc *domain.RemoteAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remotes[acc.ActorURI] = acc
	return nil
}

func (s *fakeStore) UpdateRemoteAccount(acc *domain.RemoteAccount) error {
	return s.CreateRemoteAccount(acc)
}

func (s *fakeStore) TombstoneRemoteAccount(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.remotes[uri]; ok {
		acc.Deleted = true
	} else {
		s.remotes[uri] = &domain.RemoteAccount{ActorURI: uri, Deleted: true}
	}
	return nil
}

func (s *fakeStore) ReadPostByURI(uri string) (error, *domain.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[uri]; ok {
		return nil, p
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) ReadPostById(postId uuid.UUID) (error, *domain.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.Id == postId {
			return nil, p
		}
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) CreatePost(p *domain.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ObjectURI] = p
	return nil
}

func (s *fakeStore) UpdatePost(p *domain.Post) error {
	return s.CreatePost(p)
}

func (s *fakeStore) SetPostRemoved(uri string, removed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[uri]; ok {
		p.Removed = removed
	}
	return nil
}

func (s *fakeStore) TombstonePost(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[uri]; ok {
		p.Deleted = true
	}
	return nil
}

func (s *fakeStore) ReadCommentByURI(uri string) (error, *domain.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.comments[uri]; ok {
		return nil, c
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) CreateComment(c *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.ObjectURI] = c
	return nil
}

func (s *fakeStore) UpdateComment(c *domain.Comment) error {
	return s.CreateComment(c)
}

func (s *fakeStore) SetCommentRemoved(uri string, removed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.comments[uri]; ok {
		c.Removed = removed
	}
	return nil
}

func (s *fakeStore) TombstoneComment(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.comments[uri]; ok {
		c.Deleted = true
	}
	return nil
}

func (s *fakeStore) UpsertVote(v *domain.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[v.ActorURI+"|"+v.ObjectURI] = v
	return nil
}

func (s *fakeStore) DeleteVote(actorURI, objectURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.votes, actorURI+"|"+objectURI)
	return nil
}

func (s *fakeStore) CreatePrivateMessage(pm *domain.PrivateMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[pm.ObjectURI] = pm
	return nil
}

func (s *fakeStore) ReadPrivateMessageByURI(uri string) (error, *domain.PrivateMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pm, ok := s.messages[uri]; ok {
		return nil, pm
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) UpdatePrivateMessage(pm *domain.PrivateMessage) error {
	return s.CreatePrivateMessage(pm)
}

func (s *fakeStore) TombstonePrivateMessage(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pm, ok := s.messages[uri]; ok {
		pm.Deleted = true
	}
	return nil
}

func (s *fakeStore) CreateReport(r *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

func (s *fakeStore) ResolveReportsByObjectURI(objectURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.ObjectURI == objectURI {
			r.Resolved = true
		}
	}
	return nil
}

func (s *fakeStore) CreateFollow(f *domain.Follow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows = append(s.follows, f)
	return nil
}

func (s *fakeStore) ReadFollowByURI(uri string) (error, *domain.Follow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.follows {
		if f.URI == uri {
			return nil, f
		}
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) ReadFollowByActors(actorURI, targetURI string) (error, *domain.Follow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.follows {
		if f.ActorURI == actorURI && f.TargetURI == targetURI {
			return nil, f
		}
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) AcceptFollowByURI(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.follows {
		if f.URI == uri {
			f.Accepted = true
			f.Pending = false
		}
	}
	return nil
}

func (s *fakeStore) DeleteFollowByURI(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.follows[:0]
	for _, f := range s.follows {
		if f.URI != uri {
			kept = append(kept, f)
		}
	}
	s.follows = kept
	return nil
}

func (s *fakeStore) DeleteFollowByActors(actorURI, targetURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.follows[:0]
	for _, f := range s.follows {
		if !(f.ActorURI == actorURI && f.TargetURI == targetURI) {
			kept = append(kept, f)
		}
	}
	s.follows = kept
	return nil
}

func (s *fakeStore) ReadFollowersOf(targetURI string) (error, *[]domain.Follow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Follow
	for _, f := range s.follows {
		if f.TargetURI == targetURI {
			result = append(result, *f)
		}
	}
	return nil, &result
}

func (s *fakeStore) CreateActivity(a *domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[a.ActivityURI] = a
	return nil
}

func (s *fakeStore) ReadActivityByURI(uri string) (error, *domain.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.activities[uri]; ok {
		return nil, a
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) AddModerator(mod *domain.CommunityModerator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moderators[mod.CommunityId.String()+"|"+mod.ActorURI] = true
	return nil
}

func (s *fakeStore) RemoveModerator(communityId uuid.UUID, actorURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.moderators, communityId.String()+"|"+actorURI)
	return nil
}

func (s *fakeStore) IsModerator(communityId uuid.UUID, actorURI string) (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil, s.moderators[communityId.String()+"|"+actorURI]
}

func (s *fakeStore) CreateBan(ban *domain.Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[ban.CommunityId.String()+"|"+ban.ActorURI] = true
	return nil
}

func (s *fakeStore) DeleteBan(communityId uuid.UUID, actorURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bans, communityId.String()+"|"+actorURI)
	return nil
}

func (s *fakeStore) IsBanned(communityId uuid.UUID, actorURI string) (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil, s.bans[communityId.String()+"|"+actorURI]
}

func (s *fakeStore) CreateDeadDelivery(d *domain.DeadDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = append(s.dead, d)
	return nil
}

func (s *fakeStore) MarkInstanceAlive(domainName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive[domainName]++
	if _, ok := s.instances[domainName]; !ok {
		s.instances[domainName] = &domain.RemoteInstance{
			Id:        uuid.New(),
			Domain:    domainName,
			CreatedAt: time.Now(),
		}
	}
	s.instances[domainName].LastAliveAt = time.Now()
	return nil
}

func (s *fakeStore) ReadInstanceByDomain(domainName string) (error, *domain.RemoteInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst, ok := s.instances[domainName]; ok {
		return nil, inst
	}
	return sql.ErrNoRows, nil
}

func (s *fakeStore) UpsertInstance(inst *domain.RemoteInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[inst.Domain] = inst
	return nil
}

func (s *fakeStore) deadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dead)
}

// newTestContext builds a Context over a fresh fake store. The URL
// admission check is opened up so tests can talk to httptest servers
// on loopback addresses.
func newTestContext() (*Context, *fakeStore) {
	conf := &util.AppConfig{}
	conf.Conf.Host = "127.0.0.1"
	conf.Conf.SslDomain = "local.example"
	conf.Conf.WithAp = true
	conf.Conf.Federation.Workers = 2
	conf.Conf.Federation.FetchLimit = 25
	conf.Conf.Federation.MaxAttempts = 3

	store := newFakeStore()
	ctx := NewContext(conf, store)
	ctx.CheckURL = func(ctx *Context, u *url.URL) error { return nil }
	return ctx, store
}
