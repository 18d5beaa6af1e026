package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/youthhub/internal/model"
)

func TestStats_EmptyStore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n, err := db.CountUsers(ctx, model.RoleYouth)
	if err != nil || n != 0 {
		t.Errorf("CountUsers() = %d, %v; want 0", n, err)
	}
	if _, ok, err := db.AverageXP(ctx, model.RoleYouth); err != nil || ok {
		t.Errorf("AverageXP() ok = %v, err = %v; want no rows", ok, err)
	}
	latest, err := db.LatestOffering(ctx)
	if err != nil || latest != nil {
		t.Errorf("LatestOffering() = %+v, %v; want nil, nil", latest, err)
	}
}

func TestStats_CountsAndAverage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for name, xp := range map[string]int{"ana": 100, "bia": 250, "caio": 0} {
		u := model.NewUser(name, name+"@example.com")
		u.XP = xp
		if err := db.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
	}
	// Staff accounts count toward neither the total nor the average.
	admin := model.NewUser("adm", "adm@example.com")
	admin.Role = model.RoleAdmin
	admin.XP = 9000
	if err := db.CreateUser(ctx, admin); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	createTestOffering(t, db, model.KindEvent, model.StateUpcoming, nil)
	createTestOffering(t, db, model.KindEvent, model.StateOngoing, nil)
	latest := createTestOffering(t, db, model.KindCourse, model.StateUpcoming, intPtr(5))
	if err := db.CreateAchievement(ctx, &model.Achievement{Name: "Primeiro passo", Points: 10}); err != nil {
		t.Fatalf("CreateAchievement() error = %v", err)
	}

	if n, err := db.CountUsers(ctx, model.RoleYouth); err != nil || n != 3 {
		t.Errorf("CountUsers(jovem) = %d, %v; want 3", n, err)
	}
	avg, ok, err := db.AverageXP(ctx, model.RoleYouth)
	if err != nil || !ok {
		t.Fatalf("AverageXP() ok = %v, err = %v", ok, err)
	}
	if want := 350.0 / 3; avg < want-0.001 || avg > want+0.001 {
		t.Errorf("AverageXP() = %v, want %v", avg, want)
	}

	wantKinds := map[model.Kind]int64{model.KindCourse: 1, model.KindEvent: 2, model.KindOpportunity: 0}
	for kind, want := range wantKinds {
		if n, err := db.CountOfferings(ctx, kind); err != nil || n != want {
			t.Errorf("CountOfferings(%s) = %d, %v; want %d", kind, n, err, want)
		}
	}
	if n, err := db.CountAchievements(ctx); err != nil || n != 1 {
		t.Errorf("CountAchievements() = %d, %v; want 1", n, err)
	}

	got, err := db.LatestOffering(ctx)
	if err != nil {
		t.Fatalf("LatestOffering() error = %v", err)
	}
	if got == nil || got.ID != latest.ID || got.Kind != model.KindCourse {
		t.Errorf("LatestOffering() = %+v, want course %s", got, latest.ID)
	}
}
