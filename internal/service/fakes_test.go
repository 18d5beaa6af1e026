package service

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory repository.Store. It keeps the same contracts as
// the real stores (versioned SaveUser, conditional seat update, likes moving
// with the counter) so service tests exercise the real rules without a DB.
//
// Hooks let a test inject failures:
//   - saveErrs: returned by SaveUser in order, one per call, before saving
//   - beforeSave: runs before each SaveUser (used to simulate a racing writer)
//   - seatErr: returned by UpdateSeats when set
//   - statsErr: returned by every StatsRepository method when set
type fakeStore struct {
	mu           sync.Mutex
	users        map[string]*model.User
	offerings    map[string]*model.Offering
	achievements map[string]*model.Achievement
	nextID       int

	saveErrs   []error
	beforeSave func(u *model.User)
	seatErr    error
	statsErr   error
	saveCalls  int
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        map[string]*model.User{},
		offerings:    map[string]*model.Offering{},
		achievements: map[string]*model.Achievement{},
	}
}

func offeringKey(kind model.Kind, id string) string { return string(kind) + "/" + id }

func (f *fakeStore) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func (f *fakeStore) CreateUser(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if user.Email != "" && u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
		if user.Provider != "" && u.Provider == user.Provider && u.ProviderID == user.ProviderID {
			return apperror.Conflict("user", user.ProviderID)
		}
	}
	user.ID = f.newID("user")
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt
	user.Version = 1
	if user.Level < 1 {
		user.Level = model.LevelForXP(user.XP)
	}
	f.users[user.ID] = user.Clone()
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u.Clone(), nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return f.findUser(email, func(u *model.User) bool { return u.Email == email })
}

func (f *fakeStore) GetUserByProvider(ctx context.Context, provider, providerID string) (*model.User, error) {
	return f.findUser(providerID, func(u *model.User) bool {
		return u.Provider == provider && u.ProviderID == providerID
	})
}

func (f *fakeStore) findUser(label string, match func(*model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, apperror.NotFound("user", label)
}

func (f *fakeStore) SaveUser(ctx context.Context, user *model.User) error {
	if f.beforeSave != nil {
		f.beforeSave(user)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if len(f.saveErrs) > 0 {
		err := f.saveErrs[0]
		f.saveErrs = f.saveErrs[1:]
		if err != nil {
			return err
		}
	}
	stored, ok := f.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	if stored.Version != user.Version {
		return apperror.Conflict("user", user.ID)
	}
	next := user.Clone()
	next.Likes = stored.Likes
	next.Active = stored.Active
	next.Role = stored.Role
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	f.users[user.ID] = next
	user.Version = next.Version
	return nil
}

func (f *fakeStore) SetActive(ctx context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Active = active
	return nil
}

func (f *fakeStore) ListActiveUsers(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.users {
		if u.Active {
			out = append(out, *u.Clone())
		}
	}
	// Deliberately unsorted: the service must order the rows itself.
	return out, nil
}

func (f *fakeStore) TopActiveUsers(ctx context.Context, n int) ([]model.User, error) {
	all, _ := f.ListActiveUsers(ctx)
	sortRanked(all)
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (f *fakeStore) SetLike(ctx context.Context, userID string, kind model.Kind, targetID string, liked bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return 0, apperror.NotFound("user", userID)
	}
	o, ok := f.offerings[offeringKey(kind, targetID)]
	if !ok {
		return 0, apperror.NotFound(string(kind), targetID)
	}
	if u.HasLike(kind, targetID) == liked {
		return o.LikesCount, nil
	}
	if u.Likes == nil {
		u.Likes = map[model.Kind][]string{}
	}
	if liked {
		u.Likes[kind] = append(u.Likes[kind], targetID)
		o.LikesCount++
	} else {
		i := slices.Index(u.Likes[kind], targetID)
		u.Likes[kind] = slices.Delete(u.Likes[kind], i, i+1)
		o.LikesCount = max(0, o.LikesCount-1)
	}
	return o.LikesCount, nil
}

func (f *fakeStore) CreateOffering(ctx context.Context, o *model.Offering) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = f.newID(string(o.Kind))
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	c := *o
	f.offerings[offeringKey(o.Kind, o.ID)] = &c
	return nil
}

func (f *fakeStore) GetOffering(ctx context.Context, kind model.Kind, id string) (*model.Offering, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offerings[offeringKey(kind, id)]
	if !ok {
		return nil, apperror.NotFound(string(kind), id)
	}
	c := *o
	return &c, nil
}

func (f *fakeStore) ListOfferings(ctx context.Context, kind model.Kind, opts repository.ListOptions) ([]model.Offering, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Offering
	for _, o := range f.offerings {
		if o.Kind == kind {
			out = append(out, *o)
		}
	}
	slices.SortFunc(out, func(a, b model.Offering) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if opts.Offset >= len(out) {
		return []model.Offering{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeStore) ListOfferingsByIDs(ctx context.Context, kind model.Kind, ids []string) ([]model.Offering, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Offering{}
	for _, id := range ids {
		if o, ok := f.offerings[offeringKey(kind, id)]; ok {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) SetLifecycleState(ctx context.Context, kind model.Kind, id string, state model.LifecycleState) (*model.Offering, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offerings[offeringKey(kind, id)]
	if !ok {
		return nil, apperror.NotFound(string(kind), id)
	}
	o.State = state
	c := *o
	return &c, nil
}

func (f *fakeStore) UpdateSeats(ctx context.Context, kind model.Kind, id string, delta int) (*model.Offering, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seatErr != nil {
		return nil, false, f.seatErr
	}
	o, ok := f.offerings[offeringKey(kind, id)]
	if !ok {
		return nil, false, apperror.NotFound(string(kind), id)
	}
	applied := true
	switch {
	case delta > 0 && o.Capacity != nil && o.SeatsTaken >= *o.Capacity:
		applied = false
	case delta > 0:
		o.SeatsTaken++
	default:
		o.SeatsTaken = max(0, o.SeatsTaken-1)
	}
	c := *o
	return &c, applied, nil
}

func (f *fakeStore) CreateAchievement(ctx context.Context, a *model.Achievement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = f.newID("ach")
	c := *a
	f.achievements[a.ID] = &c
	return nil
}

func (f *fakeStore) GetAchievement(ctx context.Context, id string) (*model.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.achievements[id]
	if !ok {
		return nil, apperror.NotFound("achievement", id)
	}
	c := *a
	return &c, nil
}

func (f *fakeStore) ListAchievements(ctx context.Context) ([]model.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Achievement{}
	for _, a := range f.achievements {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b model.Achievement) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeStore) CountUsers(ctx context.Context, role model.Role) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return 0, f.statsErr
	}
	var n int64
	for _, u := range f.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) AverageXP(ctx context.Context, role model.Role) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return 0, false, f.statsErr
	}
	var sum, n int
	for _, u := range f.users {
		if u.Role == role {
			sum += u.XP
			n++
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	return float64(sum) / float64(n), true, nil
}

func (f *fakeStore) CountOfferings(ctx context.Context, kind model.Kind) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return 0, f.statsErr
	}
	var n int64
	for _, o := range f.offerings {
		if o.Kind == kind {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountAchievements(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return 0, f.statsErr
	}
	return int64(len(f.achievements)), nil
}

func (f *fakeStore) LatestOffering(ctx context.Context) (*model.Offering, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	var latest *model.Offering
	for _, o := range f.offerings {
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

// =========================================================================
// HELPERS
// =========================================================================

var testEpoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClock() *testclock.Clock {
	return testclock.NewClock(testEpoch)
}

func intPtr(n int) *int { return &n }

func (f *fakeStore) addOffering(t *testing.T, kind model.Kind, state model.LifecycleState, capacity *int, xp int) *model.Offering {
	t.Helper()
	o := &model.Offering{Kind: kind, Title: "offering", State: state, Capacity: capacity, XPReward: xp}
	if err := f.CreateOffering(context.Background(), o); err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}
	return o
}

func (f *fakeStore) addUser(t *testing.T, name string) *model.User {
	t.Helper()
	u := model.NewUser(name, name+"@example.com")
	if err := f.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func (f *fakeStore) user(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := f.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUserByID(%s): %v", id, err)
	}
	return u
}

func (f *fakeStore) offering(t *testing.T, kind model.Kind, id string) *model.Offering {
	t.Helper()
	o, err := f.GetOffering(context.Background(), kind, id)
	if err != nil {
		t.Fatalf("GetOffering(%s): %v", id, err)
	}
	return o
}
