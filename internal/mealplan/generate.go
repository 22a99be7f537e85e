package mealplan

import (
	"context"
	"fmt"
	"log"
	"time"

	"household-bot/internal/reminder"
)

// reminderHour is the canonical delivery slot for ingredient reminders.
const reminderHour = 10

// clampDelay is applied when the canonical slot has already passed.
const clampDelay = 5 * time.Minute

// GenerateReminders (re)creates the ingredient reminders for a plan. It is
// idempotent across repeated assignment edits: any existing reminders for
// the plan are deleted first, and ids carry a generation timestamp so
// repeated runs never collide.
func (m *Manager) GenerateReminders(ctx context.Context, plan *Plan) error {
	ids, err := m.reminders.DeleteByPlan(ctx, plan.ID)
	if err != nil {
		return fmt.Errorf("failed to clear reminders for plan %s: %w", plan.ID, err)
	}
	for _, id := range ids {
		if err := m.correlations.DeleteForReminder(ctx, id); err != nil {
			log.Printf("Failed to drop correlations for reminder %s: %v", id, err)
		}
	}

	now := m.now()
	mealDate := plan.MealDate.In(m.loc)
	due := dueFor(mealDate, plan.LeadDays, now, m.loc)

	for _, ing := range plan.Ingredients {
		if ing.AssignedTo == 0 {
			continue
		}
		rem := &reminder.Reminder{
			ID:           ingredientReminderID(plan.ID, ing.ID, now),
			Text:         renderIngredientText(plan, ing),
			Due:          due,
			Recipients:   []int64{ing.AssignedTo},
			Kind:         reminder.KindIngredient,
			CreatorID:    plan.CreatorID,
			CreatedAt:    now,
			PlanID:       plan.ID,
			IngredientID: ing.ID,
			RecipeName:   plan.RecipeName,
			MealDate:     mealDate.Format(reminder.MealDateLayout),
		}
		if err := m.reminders.Save(ctx, rem); err != nil {
			return fmt.Errorf("failed to save reminder for ingredient %s: %w", ing.ID, err)
		}
	}
	return nil
}

// dueFor computes the delivery time: 10:00 on meal date minus the lead time.
// A slot that is already in the past (including "today but 10:00 has gone
// by") clamps to shortly after now.
func dueFor(mealDate time.Time, leadDays int, now time.Time, loc *time.Location) time.Time {
	day := mealDate.AddDate(0, 0, -leadDays)
	slot := time.Date(day.Year(), day.Month(), day.Day(), reminderHour, 0, 0, 0, loc)
	if slot.Before(now) {
		return now.Add(clampDelay)
	}
	return slot
}

// ingredientReminderID keys a reminder by plan, ingredient and generation
// instant so regeneration across repeated edits never collides.
func ingredientReminderID(planID, ingredientID string, now time.Time) string {
	return fmt.Sprintf("ing_%.8s_%.8s_%d", planID, ingredientID, now.UnixNano())
}

func renderIngredientText(plan *Plan, ing Ingredient) string {
	text := fmt.Sprintf("Buy %s", ing.Name)
	if ing.Quantity != "" {
		text += fmt.Sprintf(" (%s)", ing.Quantity)
	}
	return fmt.Sprintf("%s for %s, cooking %s %s",
		text, plan.RecipeName, plan.Weekday, plan.MealDate.Format("2006-01-02"))
}
