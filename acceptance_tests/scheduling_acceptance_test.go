package acceptance_tests

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"household-bot/internal/correlation"
	"household-bot/internal/database"
	"household-bot/internal/dispatch"
	"household-bot/internal/mealplan"
	"household-bot/internal/recipe"
	"household-bot/internal/reminder"
)

// --- Mock Messenger ---
type mockMessenger struct {
	sent    []string
	edited  []string
	deleted int
	nextID  int
}

func (m *mockMessenger) SendMessage(_ context.Context, _ int64, text string, _ []dispatch.Button) (int, error) {
	m.nextID++
	m.sent = append(m.sent, text)
	return m.nextID, nil
}

func (m *mockMessenger) DeleteMessage(_ context.Context, _ int64, _ int) error {
	m.deleted++
	return nil
}

func (m *mockMessenger) EditMessage(_ context.Context, _ int64, _ int, text string, _ []dispatch.Button) error {
	m.edited = append(m.edited, text)
	return nil
}

// --- Acceptance Test ---
func TestFullWorkflow(t *testing.T) {
	ctx := context.Background()

	// 1. Real store in a temp dir, mock delivery channel
	db, err := database.NewDB(filepath.Join(t.TempDir(), "household.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	messenger := &mockMessenger{}
	recipes := recipe.NewRepository(db.SQL)
	reminders := reminder.NewRepository(db.SQL)
	plans := mealplan.NewRepository(db.SQL)
	correlations := correlation.NewRepository(db.SQL)

	dispatcher := dispatch.NewDispatcher(messenger, correlations, nil, time.UTC)
	dispatcher.SetNow(clock)

	manager := mealplan.NewManager(plans, recipes, reminders, correlations, time.UTC)
	manager.SetNow(clock)

	policy := reminder.SendPolicy{Location: time.UTC, OverdueSameDay: true}
	engine := reminder.NewEngine(reminders, dispatcher, manager, policy)
	engine.SetNow(clock)

	// --- 2. Step 1: Plan a meal and assign the shopping ---
	t.Log("--- Step 1: Planning a Meal ---")
	rec := recipe.Recipe{
		ID:   "rec-lasagna",
		Name: "Lasagna",
		Ingredients: []recipe.Ingredient{
			{Name: "Pasta", Quantity: "500g"},
			{Name: "Cheese", Quantity: "200g"},
		},
	}
	if err := recipes.Save(ctx, rec); err != nil {
		t.Fatalf("Failed to save recipe: %v", err)
	}

	mealDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	plan, err := manager.CreateFromRecipe(ctx, rec.ID, mealDate, 2, true, 100)
	if err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}
	for _, ing := range plan.Ingredients {
		if err := manager.AssignIngredient(ctx, plan.ID, ing.ID, 200); err != nil {
			t.Fatalf("Failed to assign ingredient: %v", err)
		}
	}

	rems, err := reminders.ListByPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("Failed to list reminders: %v", err)
	}
	if len(rems) != 2 {
		t.Fatalf("Expected 2 ingredient reminders, got %d", len(rems))
	}

	// --- 3. Step 2: Delivery at the 10:00 slot two days before ---
	t.Log("--- Step 2: Delivering Reminders ---")
	now = time.Date(2024, 1, 8, 10, 0, 30, 0, time.UTC)
	engine.EvaluateAll(ctx)

	if len(messenger.sent) != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", len(messenger.sent))
	}

	// a repeated sweep the same day stays silent
	now = now.Add(5 * time.Minute)
	engine.EvaluateAll(ctx)
	if len(messenger.sent) != 2 {
		t.Errorf("Expected no duplicate deliveries, got %d", len(messenger.sent))
	}

	// --- 4. Step 3: "Not bought" escalates, "bought" rotates ---
	t.Log("--- Step 3: Button Presses ---")
	if err := engine.MarkNotDone(ctx, rems[0].ID, 200); err != nil {
		t.Fatalf("Failed to mark not bought: %v", err)
	}
	if len(messenger.edited) != 1 {
		t.Errorf("Expected escalation to edit the delivered message, got %d edits", len(messenger.edited))
	}

	if err := engine.MarkDone(ctx, rems[0].ID, 200); err != nil {
		t.Fatalf("Failed to mark bought: %v", err)
	}
	// the rotation replaced the whole plan, so the sibling reminder is gone
	if err := engine.MarkDone(ctx, rems[1].ID, 200); !errors.Is(err, reminder.ErrNotFound) {
		t.Fatalf("Expected the sibling reminder to be gone after rotation, got %v", err)
	}

	plansLeft, err := plans.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list plans: %v", err)
	}
	if len(plansLeft) != 1 {
		t.Fatalf("Expected exactly one rotated plan, got %d", len(plansLeft))
	}
	next := plansLeft[0]
	if !next.MealDate.Equal(mealDate.AddDate(0, 0, 7)) {
		t.Errorf("Expected next week's date, got %v", next.MealDate)
	}
	if !next.AutoCreated {
		t.Error("Expected the rotated plan to be auto-created")
	}
	for _, ing := range next.Ingredients {
		if ing.AssignedTo != 200 {
			t.Errorf("Expected assignment to survive rotation: %+v", ing)
		}
	}

	// --- 5. Step 4: Next week's reminders are already scheduled ---
	nextRems, err := reminders.ListByPlan(ctx, next.ID)
	if err != nil {
		t.Fatalf("Failed to list reminders: %v", err)
	}
	if len(nextRems) != 2 {
		t.Fatalf("Expected 2 reminders for the rotated plan, got %d", len(nextRems))
	}
	wantDue := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	for _, rem := range nextRems {
		if !rem.Due.Equal(wantDue) {
			t.Errorf("Expected due %v, got %v", wantDue, rem.Due)
		}
	}
}

// Interleaved urgent escalation across quiet hours, driven end to end
// through the dispatcher.
func TestUrgentAcrossQuietHours(t *testing.T) {
	ctx := context.Background()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "household.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	now := time.Date(2024, 1, 5, 18, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	messenger := &mockMessenger{}
	reminders := reminder.NewRepository(db.SQL)
	correlations := correlation.NewRepository(db.SQL)

	dispatcher := dispatch.NewDispatcher(messenger, correlations, nil, time.UTC)
	dispatcher.SetNow(clock)

	policy := reminder.SendPolicy{Location: time.UTC, OverdueSameDay: true}
	engine := reminder.NewEngine(reminders, dispatcher, nil, policy)
	engine.SetNow(clock)

	rem, err := engine.Create(ctx, reminder.CreateRequest{
		Text:       "Take out the recycling",
		Due:        now.Add(time.Hour),
		Recipients: []int64{10},
		CreatorID:  10,
	})
	if err != nil {
		t.Fatalf("Failed to create reminder: %v", err)
	}

	// due at 19:00, delivered, then "not yet" at 20:30
	now = time.Date(2024, 1, 5, 19, 0, 30, 0, time.UTC)
	engine.EvaluateAll(ctx)
	if len(messenger.sent) != 1 {
		t.Fatalf("Expected initial delivery, got %d", len(messenger.sent))
	}

	now = time.Date(2024, 1, 5, 20, 30, 0, 0, time.UTC)
	if err := engine.MarkNotDone(ctx, rem.ID, 10); err != nil {
		t.Fatalf("Failed to mark not done: %v", err)
	}
	if len(messenger.edited) != 1 {
		t.Fatalf("Expected the escalation to replace in place, got %d edits", len(messenger.edited))
	}

	// 23:30 falls both on the re-fire interval and inside quiet hours
	now = time.Date(2024, 1, 5, 23, 30, 0, 0, time.UTC)
	engine.EvaluateAll(ctx)
	if len(messenger.edited) != 1 {
		t.Errorf("Expected re-fire deferred during quiet hours, got %d edits", len(messenger.edited))
	}

	// first sweep after 09:00 delivers the deferred re-fire
	now = time.Date(2024, 1, 6, 9, 0, 30, 0, time.UTC)
	engine.EvaluateAll(ctx)
	if len(messenger.edited) != 2 {
		t.Errorf("Expected the deferred re-fire after quiet hours, got %d edits", len(messenger.edited))
	}

	for i, text := range messenger.edited {
		if text == "" || text == messenger.sent[0] {
			t.Errorf("Edit %d should carry the urgent rendering, got %q", i, text)
		}
	}
}
