package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/imzleep/abibuilder-sub000/internal/query"
	"github.com/imzleep/abibuilder-sub000/internal/store"
	"github.com/imzleep/abibuilder-sub000/types"
)

type ledgerKey struct {
	userID  int64
	buildID int64
}

// memDB is an in-memory stand-in for the relational store. Listing queries
// are evaluated against the compiled predicate.
type memDB struct {
	mu        sync.Mutex
	builds    map[int64]types.Build
	profiles  map[int64]types.Profile
	weapons   []types.Weapon
	votes     map[ledgerKey]types.VoteDirection
	bookmarks map[ledgerKey]bool
	nextID    int64
	calls     map[string]int

	listErr   error
	lookupErr error
}

func newMemDB() *memDB {
	return &memDB{
		builds:    map[int64]types.Build{},
		profiles:  map[int64]types.Profile{},
		votes:     map[ledgerKey]types.VoteDirection{},
		bookmarks: map[ledgerKey]bool{},
		nextID:    100,
		calls:     map[string]int{},
	}
}

func (m *memDB) addProfile(p types.Profile) types.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return p
}

func (m *memDB) addBuild(b types.Build) types.Build {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == 0 {
		m.nextID++
		b.ID = m.nextID
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(b.ID) * time.Minute)
	}
	m.builds[b.ID] = b
	return b
}

func (m *memDB) hit(name string) {
	m.calls[name]++
}

func (m *memDB) ledgerCounts(buildID int64) types.VoteCounts {
	var c types.VoteCounts
	for k, dir := range m.votes {
		if k.buildID != buildID {
			continue
		}
		if dir == types.VoteUp {
			c.Upvotes++
		} else {
			c.Downvotes++
		}
	}
	return c
}

func (m *memDB) row(b types.Build) types.BuildRow {
	return types.BuildRow{Build: b, Author: authorOf(m.profiles[b.UserID])}
}

func (m *memDB) matches(b types.Build, q query.Query) bool {
	if len(q.Statuses) > 0 && !containsStatus(q.Statuses, b.Status) && (q.VisibleTo == 0 || b.UserID != q.VisibleTo) {
		return false
	}
	if q.OwnerID > 0 && b.UserID != q.OwnerID {
		return false
	}
	if q.BookmarkedBy > 0 && !m.bookmarks[ledgerKey{q.BookmarkedBy, b.ID}] {
		return false
	}
	if q.Text != nil {
		term := strings.ToLower(q.Text.Term)
		ok := strings.Contains(strings.ToLower(b.Title), term) ||
			strings.Contains(strings.ToLower(b.WeaponName), term) ||
			containsID(q.Text.AuthorIDs, b.UserID)
		if !ok {
			return false
		}
	}
	for _, ids := range q.WeaponSets {
		if !containsID(ids, b.WeaponID) {
			return false
		}
	}
	for _, ids := range q.AuthorSets {
		if !containsID(ids, b.UserID) {
			return false
		}
	}
	if q.Tag != "" {
		found := false
		for _, tag := range b.Tags {
			if tag == q.Tag {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsStatus(statuses []types.BuildStatus, s types.BuildStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func less(a, b types.Build, terms []query.Order) bool {
	for _, t := range terms {
		var cmp int
		switch t.Field {
		case query.FieldUpvotes:
			cmp = a.Upvotes - b.Upvotes
		case query.FieldPrice:
			cmp = int(a.Price - b.Price)
		case query.FieldCreatedAt:
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		case query.FieldID:
			cmp = int(a.ID - b.ID)
		}
		if cmp == 0 {
			continue
		}
		if t.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

type fakeBuilds struct{ *memDB }

func (f fakeBuilds) List(_ context.Context, q query.Query) ([]types.BuildRow, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("list")
	if f.listErr != nil {
		return nil, 0, f.listErr
	}

	var matched []types.Build
	for _, b := range f.builds {
		if f.matches(b, q) {
			matched = append(matched, b)
		}
	}
	terms := q.Sort.Terms()
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j], terms) })

	total := len(matched)
	rows := []types.BuildRow{}
	for i := q.Offset; i < total && i < q.Offset+q.Limit; i++ {
		rows = append(rows, f.row(matched[i]))
	}
	return rows, total, nil
}

func (f fakeBuilds) GetRow(_ context.Context, id int64) (types.BuildRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.builds[id]
	if !ok {
		return types.BuildRow{}, store.ErrNotFound
	}
	return f.row(b), nil
}

func (f fakeBuilds) Create(_ context.Context, b types.Build) (types.Build, error) {
	f.mu.Lock()
	f.hit("create")
	f.mu.Unlock()
	return f.addBuild(b), nil
}

func (f fakeBuilds) UpdateContent(_ context.Context, b types.Build) (types.Build, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("update_content")
	cur, ok := f.builds[b.ID]
	if !ok {
		return types.Build{}, store.ErrNotFound
	}
	b.Upvotes, b.Downvotes, b.CreatedAt = cur.Upvotes, cur.Downvotes, cur.CreatedAt
	f.builds[b.ID] = b
	return b, nil
}

func (f fakeBuilds) UpdateStatus(_ context.Context, id int64, status types.BuildStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("update_status")
	b, ok := f.builds[id]
	if !ok {
		return store.ErrNotFound
	}
	b.Status = status
	f.builds[id] = b
	return nil
}

func (f fakeBuilds) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.builds[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.builds, id)
	for k := range f.votes {
		if k.buildID == id {
			delete(f.votes, k)
		}
	}
	for k := range f.bookmarks {
		if k.buildID == id {
			delete(f.bookmarks, k)
		}
	}
	return nil
}

func (f fakeBuilds) RecountVotes(_ context.Context, id int64) (types.VoteCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.builds[id]
	if !ok {
		return types.VoteCounts{}, store.ErrNotFound
	}
	c := f.ledgerCounts(id)
	b.Upvotes, b.Downvotes = c.Upvotes, c.Downvotes
	f.builds[id] = b
	return c, nil
}

func (f fakeBuilds) CountByUser(_ context.Context, userID int64, statuses ...types.BuildStatus) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.builds {
		if b.UserID == userID && (len(statuses) == 0 || containsStatus(statuses, b.Status)) {
			n++
		}
	}
	return n, nil
}

type fakeWeapons struct{ *memDB }

func (f fakeWeapons) Weapons(context.Context) ([]types.Weapon, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.weapons, nil
}

func (f fakeWeapons) WeaponIDsByCategories(_ context.Context, categories []string) ([]int64, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var ids []int64
	for _, w := range f.weapons {
		for _, c := range categories {
			if w.Category == c {
				ids = append(ids, w.ID)
				break
			}
		}
	}
	return ids, nil
}

func (f fakeWeapons) GetByID(_ context.Context, id int64) (types.Weapon, error) {
	for _, w := range f.weapons {
		if w.ID == id {
			return w, nil
		}
	}
	return types.Weapon{}, store.ErrNotFound
}

func (f fakeWeapons) GetByName(_ context.Context, name string) (types.Weapon, error) {
	for _, w := range f.weapons {
		if strings.EqualFold(w.Name, name) {
			return w, nil
		}
	}
	return types.Weapon{}, store.ErrNotFound
}

type fakeProfiles struct{ *memDB }

func (f fakeProfiles) GetByID(_ context.Context, id int64) (types.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (f fakeProfiles) GetByUsername(_ context.Context, username string) (types.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if strings.EqualFold(p.Username, username) {
			return p, nil
		}
	}
	return types.Profile{}, store.ErrNotFound
}

func (f fakeProfiles) MatchUsernames(_ context.Context, term string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var ids []int64
	for id, p := range f.profiles {
		if strings.Contains(strings.ToLower(p.Username), strings.ToLower(term)) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f fakeProfiles) IDsByUsername(ctx context.Context, username string) ([]int64, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	p, err := f.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return []int64{p.ID}, err
}

func (f fakeProfiles) StreamerIDs(context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var ids []int64
	for id, p := range f.profiles {
		if p.IsStreamer {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f fakeProfiles) ListStreamers(context.Context) ([]types.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []types.Profile{}
	for _, p := range f.profiles {
		if p.IsStreamer {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeProfiles) Create(_ context.Context, p types.Profile) (types.Profile, error) {
	if _, err := f.GetByUsername(context.Background(), p.Username); err == nil {
		return types.Profile{}, store.ErrConflict
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	f.profiles[p.ID] = p
	return p, nil
}

func (f fakeProfiles) Update(_ context.Context, p types.Profile) (types.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, other := range f.profiles {
		if id != p.ID && strings.EqualFold(other.Username, p.Username) {
			return types.Profile{}, store.ErrConflict
		}
	}
	if _, ok := f.profiles[p.ID]; !ok {
		return types.Profile{}, store.ErrNotFound
	}
	f.profiles[p.ID] = p
	return p, nil
}

func (f fakeProfiles) UpdateRoles(_ context.Context, id int64, roles types.RoleFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return store.ErrNotFound
	}
	p.IsAdmin, p.IsModerator, p.IsStreamer = roles.IsAdmin, roles.IsModerator, roles.IsStreamer
	p.IsVerified, p.IsSupporter = roles.IsVerified, roles.IsSupporter
	f.profiles[id] = p
	return nil
}

type fakeLedger struct{ *memDB }

func (f fakeLedger) GetVote(_ context.Context, userID, buildID int64) (types.VoteDirection, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir, ok := f.votes[ledgerKey{userID, buildID}]
	return dir, ok, nil
}

func (f fakeLedger) UpsertVote(_ context.Context, userID, buildID int64, dir types.VoteDirection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes[ledgerKey{userID, buildID}] = dir
	return nil
}

func (f fakeLedger) DeleteVote(_ context.Context, userID, buildID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.votes, ledgerKey{userID, buildID})
	return nil
}

func (f fakeLedger) HasBookmark(_ context.Context, userID, buildID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookmarks[ledgerKey{userID, buildID}], nil
}

func (f fakeLedger) AddBookmark(_ context.Context, userID, buildID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookmarks[ledgerKey{userID, buildID}] = true
	return nil
}

func (f fakeLedger) RemoveBookmark(_ context.Context, userID, buildID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bookmarks, ledgerKey{userID, buildID})
	return nil
}

func (f fakeLedger) ViewerMarks(_ context.Context, userID int64, ids []int64) (map[int64]types.VoteDirection, map[int64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("viewer_marks")
	votes := map[int64]types.VoteDirection{}
	bookmarks := map[int64]bool{}
	for _, id := range ids {
		if dir, ok := f.votes[ledgerKey{userID, id}]; ok {
			votes[id] = dir
		}
		if f.bookmarks[ledgerKey{userID, id}] {
			bookmarks[id] = true
		}
	}
	return votes, bookmarks, nil
}

func (f fakeLedger) CountBookmarks(_ context.Context, userID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.bookmarks {
		if k.userID == userID {
			n++
		}
	}
	return n, nil
}

type fakeImages struct {
	deleted []string
	err     error
}

func (f *fakeImages) DeleteURL(_ context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	return f.err
}

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakeBroker struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (b *fakeBroker) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.messages = append(b.messages, published{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

func (b *fakeBroker) channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.messages {
		out = append(out, m.channel)
	}
	return out
}

type fakeObjectStore struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if s.err != nil {
		return s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	s.types[key] = contentType
	return nil
}

func (s *fakeObjectStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

// fixture is a populated store with the services wired on top of it.
type fixture struct {
	db         *memDB
	broker     *fakeBroker
	images     *fakeImages
	builds     *BuildService
	ledger     *LedgerService
	moderation *ModerationService
	profiles   *ProfileService

	owner, streamer, other, moderator, admin types.Profile
}

func newFixture() *fixture {
	db := newMemDB()
	db.weapons = []types.Weapon{
		{ID: 1, Name: "M4A1", Category: "Assault Rifle", ImageURL: "https://cdn.example/m4a1.png"},
		{ID: 2, Name: "AKM", Category: "Assault Rifle"},
		{ID: 3, Name: "SV-98", Category: "Sniper Rifle"},
	}

	f := &fixture{db: db, broker: &fakeBroker{}, images: &fakeImages{}}
	f.owner = db.addProfile(types.Profile{ID: 1, Username: "owner"})
	f.streamer = db.addProfile(types.Profile{ID: 2, Username: "ghost", IsStreamer: true})
	f.other = db.addProfile(types.Profile{ID: 3, Username: "bystander"})
	f.moderator = db.addProfile(types.Profile{ID: 4, Username: "mod", IsModerator: true})
	f.admin = db.addProfile(types.Profile{ID: 5, Username: "root", IsAdmin: true})

	events := NewEventPublisher(f.broker, nil)
	f.builds = NewBuildService(BuildServiceDeps{
		Builds:   fakeBuilds{db},
		Weapons:  fakeWeapons{db},
		Profiles: fakeProfiles{db},
		Ledger:   fakeLedger{db},
		Images:   f.images,
		Events:   events,
	})
	f.ledger = NewLedgerService(fakeBuilds{db}, fakeLedger{db})
	f.moderation = NewModerationService(fakeBuilds{db}, f.builds, events)
	f.profiles = NewProfileService(fakeProfiles{db}, fakeBuilds{db}, fakeLedger{db})
	return f
}

func intPtr(v int) *int { return &v }

func int64Ptr(v int64) *int64 { return &v }

func validPayload() types.BuildPayload {
	return types.BuildPayload{
		Title:            "Laser beam",
		Description:      "no recoil",
		BuildCode:        "M4A1-ABC-123",
		WeaponID:         1,
		Price:            int64Ptr(180000),
		Tags:             []string{"META", "META", " Budget ", types.StreamerBuildTag},
		VerticalRecoil:   intPtr(40),
		HorizontalRecoil: intPtr(35),
		Ergonomics:       intPtr(62),
		WeaponStability:  intPtr(70),
		Accuracy:         intPtr(55),
		HipfireStability: intPtr(48),
		EffectiveRange:   intPtr(500),
		MuzzleVelocity:   intPtr(880),
	}
}
