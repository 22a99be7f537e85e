package mealplan

import (
	"context"
	"fmt"
	"log"
	"time"

	"household-bot/internal/correlation"
	"household-bot/internal/recipe"
	"household-bot/internal/reminder"
)

// Manager owns the meal-plan lifecycle: creation from recipe snapshots,
// assignment edits, weekly rotation and the recipe-delete cascade.
type Manager struct {
	plans        *Repository
	recipes      *recipe.Repository
	reminders    *reminder.Repository
	correlations *correlation.Repository
	loc          *time.Location
	now          func() time.Time
}

// NewManager creates a Manager.
func NewManager(plans *Repository, recipes *recipe.Repository, reminders *reminder.Repository,
	correlations *correlation.Repository, loc *time.Location) *Manager {
	if loc == nil {
		loc = time.Local
	}
	return &Manager{
		plans:        plans,
		recipes:      recipes,
		reminders:    reminders,
		correlations: correlations,
		loc:          loc,
		now:          time.Now,
	}
}

// SetNow overrides the manager's clock. Intended for tests.
func (m *Manager) SetNow(now func() time.Time) {
	m.now = now
}

// CreateFromRecipe snapshots a recipe into a new plan for mealDate and
// stores it. Reminders appear once ingredients get assigned.
func (m *Manager) CreateFromRecipe(ctx context.Context, recipeID string, mealDate time.Time, leadDays int, notify bool, creatorID int64) (*Plan, error) {
	if !validLead(leadDays) {
		return nil, fmt.Errorf("lead time must be one of %v days, got %d", ValidLeadDays, leadDays)
	}
	rec, err := m.recipes.Get(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("recipe %s does not exist", recipeID)
	}

	plan := NewFromRecipe(*rec, mealDate.In(m.loc), leadDays, notify, creatorID)
	if err := m.plans.Save(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// AssignIngredient sets (or clears, with recipientID 0) the purchaser of an
// ingredient and regenerates the plan's reminders.
func (m *Manager) AssignIngredient(ctx context.Context, planID, ingredientID string, recipientID int64) error {
	plan, err := m.plans.Get(ctx, planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("plan %s does not exist", planID)
	}
	ing := plan.Ingredient(ingredientID)
	if ing == nil {
		return fmt.Errorf("plan %s has no ingredient %s", planID, ingredientID)
	}
	ing.AssignedTo = recipientID

	if err := m.plans.Save(ctx, plan); err != nil {
		return err
	}
	if plan.NotifyEnabled {
		return m.GenerateReminders(ctx, plan)
	}
	return nil
}

// Rotate replaces a completed plan with one dated seven days later carrying
// identical ingredient assignments. A missing plan means another expiring
// reminder already rotated it; that is a successful no-op. If next week is
// already planned for the recipe, the current plan is simply discarded.
func (m *Manager) Rotate(ctx context.Context, planID string) error {
	plan, err := m.plans.Get(ctx, planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return nil
	}

	nextDate := plan.MealDate.AddDate(0, 0, 7)
	exists, err := m.plans.ExistsForRecipeOnDate(ctx, plan.RecipeID, nextDate)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("Plan %s: %s already planned for %s, discarding", plan.ID,
			plan.RecipeName, nextDate.Format("2006-01-02"))
		return m.deletePlan(ctx, plan.ID)
	}

	next := plan.nextWeek()
	if err := m.plans.Save(ctx, next); err != nil {
		return err
	}
	if err := m.deletePlan(ctx, plan.ID); err != nil {
		return err
	}
	log.Printf("Plan %s rotated to %s for %s", plan.ID, next.ID, next.MealDate.Format("2006-01-02"))

	if next.NotifyEnabled {
		return m.GenerateReminders(ctx, next)
	}
	return nil
}

// RotatePastPlans rotates every plan whose meal date has passed. Called by
// the periodic sweeps so plans without live reminders (notifications
// disabled, nothing assigned) still roll over.
func (m *Manager) RotatePastPlans(ctx context.Context) {
	plans, err := m.plans.List(ctx)
	if err != nil {
		log.Printf("Sweep: failed to list plans: %v", err)
		return
	}
	today := startOfDay(m.now().In(m.loc))
	for _, plan := range plans {
		if !plan.MealDate.In(m.loc).Before(today) {
			continue
		}
		if err := m.Rotate(ctx, plan.ID); err != nil {
			log.Printf("Sweep: rotation of plan %s: %v", plan.ID, err)
		}
	}
}

// DeleteRecipe removes a recipe and cascades to every plan referencing it
// and their ingredient reminders.
func (m *Manager) DeleteRecipe(ctx context.Context, recipeID string) error {
	plans, err := m.plans.ListByRecipe(ctx, recipeID)
	if err != nil {
		return err
	}
	for _, plan := range plans {
		if err := m.deletePlan(ctx, plan.ID); err != nil {
			return err
		}
	}
	return m.recipes.Delete(ctx, recipeID)
}

// DeletePlan removes a plan together with its reminders and correlations.
func (m *Manager) DeletePlan(ctx context.Context, planID string) error {
	return m.deletePlan(ctx, planID)
}

func (m *Manager) deletePlan(ctx context.Context, planID string) error {
	ids, err := m.reminders.DeleteByPlan(ctx, planID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := m.correlations.DeleteForReminder(ctx, id); err != nil {
			log.Printf("Failed to drop correlations for reminder %s: %v", id, err)
		}
	}
	return m.plans.Delete(ctx, planID)
}

func validLead(days int) bool {
	for _, d := range ValidLeadDays {
		if d == days {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
