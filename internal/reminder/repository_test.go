package reminder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"household-bot/internal/database"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.SQL)
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	due := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	sent := due.Add(time.Minute)
	until := due.Add(24 * time.Hour)

	rem := &Reminder{
		ID:           "rem_1712051112000000000",
		Text:         "Buy milk",
		Due:          due,
		IntervalDays: 0,
		Recipients:   []int64{30, 10, 20, 10},
		Kind:         KindIngredient,
		CreatorID:    10,
		CreatedAt:    due.Add(-time.Hour),
		LastSent:     &sent,
		PlanID:       "plan-1",
		IngredientID: "ing-1",
		RecipeName:   "Lasagna",
		MealDate:     "2024-01-12",
	}
	rem.EnterUrgent(until)

	if err := repo.Save(ctx, rem); err != nil {
		t.Fatalf("Failed to save reminder: %v", err)
	}

	got, err := repo.Get(ctx, rem.ID)
	if err != nil {
		t.Fatalf("Failed to get reminder: %v", err)
	}
	if got == nil {
		t.Fatal("Expected reminder, got nil")
	}

	// recipient list comes back as an ordered, deduplicated set
	want := []int64{10, 20, 30}
	if len(got.Recipients) != len(want) {
		t.Fatalf("Expected recipients %v, got %v", want, got.Recipients)
	}
	for i := range want {
		if got.Recipients[i] != want[i] {
			t.Fatalf("Expected recipients %v, got %v", want, got.Recipients)
		}
	}

	if got.Urgent != (got.UrgentUntil != nil) {
		t.Error("Invariant violated after round-trip: urgent ⇔ urgent_until")
	}
	if !got.UrgentUntil.Equal(until) {
		t.Errorf("Expected urgent_until %v, got %v", until, got.UrgentUntil)
	}
	if !got.Due.Equal(due) {
		t.Errorf("Expected due %v, got %v", due, got.Due)
	}
	if got.LastSent == nil || !got.LastSent.Equal(sent) {
		t.Errorf("Expected last_sent %v, got %v", sent, got.LastSent)
	}
	if got.Kind != KindIngredient || got.PlanID != "plan-1" || got.MealDate != "2024-01-12" {
		t.Errorf("Ingredient fields did not survive the round-trip: %+v", got)
	}
}

func TestRepositoryMissing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.Get(ctx, "rem_nope")
	if err != nil {
		t.Fatalf("Expected no error for missing reminder, got %v", err)
	}
	if got != nil {
		t.Fatal("Expected nil for missing reminder")
	}

	// deleting an absent reminder is not an error
	if err := repo.Delete(ctx, "rem_nope"); err != nil {
		t.Fatalf("Expected no error deleting missing reminder, got %v", err)
	}
}

func TestDeleteByPlan(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, plan := range []string{"plan-a", "plan-a", "plan-b"} {
		rem := &Reminder{
			ID:         NewID(now.Add(time.Duration(i) * time.Millisecond)),
			Text:       "Buy something",
			Due:        now,
			Recipients: []int64{1},
			Kind:       KindIngredient,
			CreatedAt:  now,
			PlanID:     plan,
		}
		if err := repo.Save(ctx, rem); err != nil {
			t.Fatalf("Failed to save reminder: %v", err)
		}
	}

	ids, err := repo.DeleteByPlan(ctx, "plan-a")
	if err != nil {
		t.Fatalf("Failed to delete by plan: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Expected 2 deleted ids, got %d", len(ids))
	}

	left, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list reminders: %v", err)
	}
	if len(left) != 1 || left[0].PlanID != "plan-b" {
		t.Fatalf("Expected only plan-b reminder to survive, got %+v", left)
	}
}
