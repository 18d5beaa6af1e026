package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
)

func TestCheckIn_AwardsXPAndLevel(t *testing.T) {
	store := newFakeStore()
	clk := newTestClock()
	svc := NewCheckInService(store, store, clk, discardLogger())
	o := store.addOffering(t, model.KindEvent, model.StateOngoing, nil, 150)
	u := store.addUser(t, "ana")

	res, err := svc.CheckIn(context.Background(), u.ID, model.KindEvent, o.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, res.Type)
	assert.Equal(t, 150, res.XPAwarded)
	assert.Equal(t, 150, res.XP)
	assert.Equal(t, 2, res.Level)
	assert.True(t, res.LeveledUp)

	stored := store.user(t, u.ID)
	assert.Equal(t, 150, stored.XP)
	assert.Equal(t, 2, stored.Level)
	require.Len(t, stored.CheckIns, 1)
	assert.Equal(t, model.CheckIn{
		Kind:       model.KindEvent,
		TargetID:   o.ID,
		XPAwarded:  150,
		OccurredAt: testEpoch,
	}, stored.CheckIns[0])
	assert.Equal(t, 1, store.saveCalls, "history, xp and level go out in one write")
}

func TestCheckIn_TwiceAwardsOnce(t *testing.T) {
	store := newFakeStore()
	svc := NewCheckInService(store, store, newTestClock(), discardLogger())
	o := store.addOffering(t, model.KindCourse, model.StateOngoing, intPtr(10), 40)
	u := store.addUser(t, "ana")
	ctx := context.Background()

	_, err := svc.CheckIn(ctx, u.ID, model.KindCourse, o.ID)
	require.NoError(t, err)
	res, err := svc.CheckIn(ctx, u.ID, model.KindCourse, o.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDuplicate, res.Type)
	assert.Zero(t, res.XPAwarded)
	assert.Equal(t, 40, res.XP)
	assert.Equal(t, 40, store.user(t, u.ID).XP)
	assert.Len(t, store.user(t, u.ID).CheckIns, 1)
}

func TestCheckIn_OutsideWindowIsAResult(t *testing.T) {
	for _, state := range []model.LifecycleState{model.StateUpcoming, model.StateCompleted, model.StateCancelled} {
		t.Run(string(state), func(t *testing.T) {
			store := newFakeStore()
			svc := NewCheckInService(store, store, newTestClock(), discardLogger())
			o := store.addOffering(t, model.KindEvent, state, nil, 100)
			u := store.addUser(t, "ana")

			res, err := svc.CheckIn(context.Background(), u.ID, model.KindEvent, o.ID)

			require.NoError(t, err)
			assert.Equal(t, OutcomeInvalidStatus, res.Type)
			assert.NotEmpty(t, res.Message)
			assert.Zero(t, store.user(t, u.ID).XP)
			assert.Zero(t, store.saveCalls)
		})
	}
}

func TestCheckIn_Errors(t *testing.T) {
	store := newFakeStore()
	svc := NewCheckInService(store, store, newTestClock(), discardLogger())
	o := store.addOffering(t, model.KindEvent, model.StateOngoing, nil, 100)
	opp := store.addOffering(t, model.KindOpportunity, model.StateOngoing, nil, 100)
	u := store.addUser(t, "ana")
	ctx := context.Background()

	_, err := svc.CheckIn(ctx, u.ID, model.KindEvent, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.CheckIn(ctx, "ghost", model.KindEvent, o.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.CheckIn(ctx, u.ID, model.KindOpportunity, opp.ID)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCheckIn_ConflictReappliesOnFreshCopy(t *testing.T) {
	store := newFakeStore()
	svc := NewCheckInService(store, store, newTestClock(), discardLogger())
	o := store.addOffering(t, model.KindEvent, model.StateOngoing, nil, 100)
	u := store.addUser(t, "ana")

	// Another write (an achievement, say) lands between load and save.
	fired := false
	store.beforeSave = func(*model.User) {
		if fired {
			return
		}
		fired = true
		store.mu.Lock()
		defer store.mu.Unlock()
		stored := store.users[u.ID]
		stored.AddXP(50)
		stored.Version++
	}

	res, err := svc.CheckIn(context.Background(), u.ID, model.KindEvent, o.ID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Type)
	assert.Equal(t, 150, res.XP)
	assert.Equal(t, 150, store.user(t, u.ID).XP)
}

func TestCheckIn_ConflictOnEveryAttemptIsServerError(t *testing.T) {
	store := newFakeStore()
	svc := NewCheckInService(store, store, newTestClock(), discardLogger())
	o := store.addOffering(t, model.KindEvent, model.StateOngoing, nil, 100)
	u := store.addUser(t, "ana")
	store.saveErrs = []error{
		apperror.Conflict("user", u.ID),
		apperror.Conflict("user", u.ID),
		apperror.Conflict("user", u.ID),
	}

	_, err := svc.CheckIn(context.Background(), u.ID, model.KindEvent, o.ID)

	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, 0, store.user(t, u.ID).XP)
}
