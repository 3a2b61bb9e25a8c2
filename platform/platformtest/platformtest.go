// Package platformtest provides in-memory implementations of the platform capabilities for tests.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"reputation-bot/models"
	"reputation-bot/platform"
)

// Clock is a settable time source shared by the fakes.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RankedStore is a map-backed platform.RankedStore.
type RankedStore struct {
	mu   sync.Mutex
	sets map[string]map[string]int64
	// Err, when set, is returned by every call.
	Err error
}

func NewRankedStore() *RankedStore {
	return &RankedStore{sets: make(map[string]map[string]int64)}
}

func (r *RankedStore) Upsert(ctx context.Context, key string, entries ...models.ScoreEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	set := r.sets[key]
	if set == nil {
		set = make(map[string]int64)
		r.sets[key] = set
	}
	for _, e := range entries {
		set[e.User] = e.Score
	}
	return nil
}

func (r *RankedStore) Get(ctx context.Context, key, member string) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, false, r.Err
	}
	score, ok := r.sets[key][member]
	return score, ok, nil
}

func (r *RankedStore) Delete(ctx context.Context, key string, members ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for _, m := range members {
		delete(r.sets[key], m)
	}
	return nil
}

func (r *RankedStore) RangeByRank(ctx context.Context, key string, start, stop int, reverse bool) ([]models.ScoreEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	all := r.sorted(key)
	if reverse {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	n := len(all)
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return []models.ScoreEntry{}, nil
	}
	return all[start : stop+1], nil
}

func (r *RankedStore) RangeByScore(ctx context.Context, key string, min, max int64) ([]models.ScoreEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := []models.ScoreEntry{}
	for _, e := range r.sorted(key) {
		if e.Score >= min && e.Score <= max {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns the members of key in ascending order.
func (r *RankedStore) All(key string) []models.ScoreEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(key)
}

func (r *RankedStore) sorted(key string) []models.ScoreEntry {
	out := make([]models.ScoreEntry, 0, len(r.sets[key]))
	for user, score := range r.sets[key] {
		out = append(out, models.ScoreEntry{User: user, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].User < out[j].User
	})
	return out
}

// KeyValueStore is a map-backed platform.KeyValueStore with expiry driven by Clock.
type KeyValueStore struct {
	mu      sync.Mutex
	clock   *Clock
	values  map[string]string
	expires map[string]time.Time
	// SetTTLs records the ttl of every Set call by key.
	SetTTLs map[string]time.Duration
}

func NewKeyValueStore(clock *Clock) *KeyValueStore {
	return &KeyValueStore{
		clock:   clock,
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
		SetTTLs: make(map[string]time.Duration),
	}
}

func (k *KeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if exp, ok := k.expires[key]; ok && !k.clock.Now().Before(exp) {
		delete(k.values, key)
		delete(k.expires, key)
	}
	v, ok := k.values[key]
	return v, ok, nil
}

func (k *KeyValueStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.values[key] = value
	k.SetTTLs[key] = ttl
	if ttl > 0 {
		k.expires[key] = k.clock.Now().Add(ttl)
	} else {
		delete(k.expires, key)
	}
	return nil
}

func (k *KeyValueStore) Delete(ctx context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.values, key)
		delete(k.expires, key)
	}
	return nil
}

// DocumentStore is a map-backed platform.DocumentStore that counts writes.
type DocumentStore struct {
	mu     sync.Mutex
	clock  *Clock
	docs   map[string]*platform.Document
	Writes int
	// VisibilityChanges counts SetVisibility calls.
	VisibilityChanges int
}

func NewDocumentStore(clock *Clock) *DocumentStore {
	return &DocumentStore{clock: clock, docs: make(map[string]*platform.Document)}
}

func (d *DocumentStore) Read(ctx context.Context, key string) (*platform.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[key]
	if !ok {
		return nil, platform.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (d *DocumentStore) Write(ctx context.Context, key, content, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Writes++
	doc, ok := d.docs[key]
	if !ok {
		doc = &platform.Document{Key: key, Visibility: models.VisibilityModsOnly}
		d.docs[key] = doc
	}
	doc.Content = content
	doc.UpdatedAt = d.clock.Now()
	return nil
}

func (d *DocumentStore) SetVisibility(ctx context.Context, key string, level models.Visibility) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[key]
	if !ok {
		return platform.ErrDocumentNotFound
	}
	d.VisibilityChanges++
	doc.Visibility = level
	return nil
}

// Scheduler records jobs without running them. Tests drive jobs by hand.
type Scheduler struct {
	mu     sync.Mutex
	clock  *Clock
	nextID int
	jobs   map[string]platform.Job
	// Cancelled lists the IDs passed to Cancel, in order.
	Cancelled []string
}

func NewScheduler(clock *Clock) *Scheduler {
	return &Scheduler{clock: clock, jobs: make(map[string]platform.Job)}
}

func (s *Scheduler) RunAt(ctx context.Context, name string, at time.Time, data map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("job-%d", s.nextID)
	s.jobs[id] = platform.Job{ID: id, Name: name, RunAt: at, Data: data}
	return id, nil
}

// RunCron accepts only "<m>/10 * * * *" style expressions, which is all the bot schedules.
func (s *Scheduler) RunCron(ctx context.Context, name, expr string) (string, error) {
	var minute int
	if _, err := fmt.Sscanf(expr, "%d/10 * * * *", &minute); err != nil {
		return "", fmt.Errorf("unsupported cron expression %q", expr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("job-%d", s.nextID)
	s.jobs[id] = platform.Job{ID: id, Name: name, Cron: expr}
	return id, nil
}

func (s *Scheduler) ListPending(ctx context.Context) ([]platform.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	out := make([]platform.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.Cron != "" {
			job.RunAt = nextTenMinute(now, job.Cron)
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RunAt.Equal(out[j].RunAt) {
			return out[i].RunAt.Before(out[j].RunAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	s.Cancelled = append(s.Cancelled, id)
	return nil
}

// Named returns pending jobs with the given name.
func (s *Scheduler) Named(name string) []platform.Job {
	jobs, _ := s.ListPending(context.Background())
	var out []platform.Job
	for _, job := range jobs {
		if job.Name == name {
			out = append(out, job)
		}
	}
	return out
}

// Take removes and returns the earliest pending one-off job with the given name.
func (s *Scheduler) Take(name string) (platform.Job, bool) {
	for _, job := range s.Named(name) {
		if job.Cron != "" {
			continue
		}
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return job, true
	}
	return platform.Job{}, false
}

func nextTenMinute(now time.Time, expr string) time.Time {
	var minute int
	fmt.Sscanf(expr, "%d/10 * * * *", &minute)
	t := now.UTC().Truncate(time.Hour).Add(time.Duration(minute) * time.Minute)
	for !t.After(now) {
		t = t.Add(10 * time.Minute)
	}
	return t
}

// Message is a recorded private message or reply.
type Message struct {
	To      string
	Subject string
	Body    string
	// ReplyTo is the comment replied to, empty for private messages.
	ReplyTo string
}

// Identity is a scripted platform.Identity that records every write.
type Identity struct {
	mu sync.Mutex

	Self       string
	Community  string
	Users      map[string]bool
	Comments   map[string]*platform.Comment
	Moderators map[string]bool
	Badges     map[string]string

	// PingErr is returned by Ping; UserErr by UserByName for every user.
	PingErr error
	UserErr error
	PMErr   error

	BadgeUpdates  []platform.BadgeUpdate
	PostFlairs    []platform.PostFlairUpdate
	PMs           []Message
	Replies       []Message
	Distinguished []string
	Locked        []string
	UserLookups   int
	nextReply     int
}

func NewIdentity(self, community string) *Identity {
	return &Identity{
		Self:       self,
		Community:  community,
		Users:      make(map[string]bool),
		Comments:   make(map[string]*platform.Comment),
		Moderators: make(map[string]bool),
		Badges:     make(map[string]string),
	}
}

// AddUser registers an active account.
func (i *Identity) AddUser(names ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, n := range names {
		i.Users[strings.ToLower(n)] = true
	}
}

// RemoveUser makes an account resolve as gone.
func (i *Identity) RemoveUser(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.Users, strings.ToLower(name))
}

// AddComment registers a comment written by author.
func (i *Identity) AddComment(id, author string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Comments[id] = &platform.Comment{ID: id, AuthorName: author, Permalink: "https://example.test/" + id}
}

func (i *Identity) SelfName() string { return i.Self }

func (i *Identity) Ping(ctx context.Context) error { return i.PingErr }

func (i *Identity) CommunityName(ctx context.Context) (string, error) { return i.Community, nil }

func (i *Identity) UserByName(ctx context.Context, name string) (*platform.User, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.UserLookups++
	if i.UserErr != nil {
		return nil, i.UserErr
	}
	if !i.Users[strings.ToLower(name)] {
		return nil, platform.ErrUserNotFound
	}
	return &platform.User{ID: "id-" + name, Name: name}, nil
}

func (i *Identity) CommentByID(ctx context.Context, id string) (*platform.Comment, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	c, ok := i.Comments[id]
	if !ok {
		return nil, errors.New("comment not found")
	}
	copied := *c
	return &copied, nil
}

func (i *Identity) IsModerator(ctx context.Context, community, user string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.Moderators[strings.ToLower(user)], nil
}

func (i *Identity) Badge(ctx context.Context, community, user string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.Badges[strings.ToLower(user)], nil
}

func (i *Identity) SetBadge(ctx context.Context, update platform.BadgeUpdate) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.BadgeUpdates = append(i.BadgeUpdates, update)
	i.Badges[strings.ToLower(update.User)] = update.Text
	return nil
}

func (i *Identity) SetPostFlair(ctx context.Context, update platform.PostFlairUpdate) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.PostFlairs = append(i.PostFlairs, update)
	return nil
}

func (i *Identity) SendPrivateMessage(ctx context.Context, to, subject, body string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.PMErr != nil {
		return i.PMErr
	}
	i.PMs = append(i.PMs, Message{To: to, Subject: subject, Body: body})
	return nil
}

func (i *Identity) Reply(ctx context.Context, commentID, body string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.nextReply++
	id := fmt.Sprintf("reply-%d", i.nextReply)
	i.Replies = append(i.Replies, Message{Body: body, ReplyTo: commentID})
	return id, nil
}

func (i *Identity) Distinguish(ctx context.Context, commentID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Distinguished = append(i.Distinguished, commentID)
	return nil
}

func (i *Identity) Lock(ctx context.Context, commentID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Locked = append(i.Locked, commentID)
	return nil
}
