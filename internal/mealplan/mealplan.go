package mealplan

import (
	"time"

	"github.com/google/uuid"

	"household-bot/internal/recipe"
)

// Lead times (days before the meal) the notification policy accepts.
var ValidLeadDays = []int{1, 2, 3, 7}

// Ingredient is one purchase assignment within a plan. Its ID stays stable
// across weekly rotations so the assignment survives regeneration.
type Ingredient struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Quantity   string `json:"quantity"`
	AssignedTo int64  `json:"assigned_to,omitempty"` // 0 = unassigned
}

// Plan is a dated snapshot of a recipe with per-ingredient purchase
// assignments and a notification policy.
type Plan struct {
	ID            string
	RecipeID      string
	RecipeName    string
	MealDate      time.Time // start of day in the household's location
	Weekday       string
	Ingredients   []Ingredient
	NotifyEnabled bool
	LeadDays      int
	CreatorID     int64
	AutoCreated   bool
	CreatedAt     time.Time
}

// NewFromRecipe snapshots a recipe into a plan for the given date. Each
// ingredient gets a fresh stable id; assignments start empty.
func NewFromRecipe(rec recipe.Recipe, mealDate time.Time, leadDays int, notify bool, creatorID int64) *Plan {
	ingredients := make([]Ingredient, 0, len(rec.Ingredients))
	for _, ing := range rec.Ingredients {
		ingredients = append(ingredients, Ingredient{
			ID:       uuid.NewString(),
			Name:     ing.Name,
			Quantity: ing.Quantity,
		})
	}
	return &Plan{
		ID:            uuid.NewString(),
		RecipeID:      rec.ID,
		RecipeName:    rec.Name,
		MealDate:      mealDate,
		Weekday:       mealDate.Weekday().String(),
		Ingredients:   ingredients,
		NotifyEnabled: notify,
		LeadDays:      leadDays,
		CreatorID:     creatorID,
		CreatedAt:     time.Now(),
	}
}

// Ingredient returns the ingredient with the given id, or nil.
func (p *Plan) Ingredient(id string) *Ingredient {
	for i := range p.Ingredients {
		if p.Ingredients[i].ID == id {
			return &p.Ingredients[i]
		}
	}
	return nil
}

// nextWeek returns a copy of the plan dated seven days later, with the same
// ingredient ids and assignments, marked auto-created.
func (p *Plan) nextWeek() *Plan {
	next := *p
	next.ID = uuid.NewString()
	next.MealDate = p.MealDate.AddDate(0, 0, 7)
	next.Weekday = next.MealDate.Weekday().String()
	next.AutoCreated = true
	next.CreatedAt = time.Now()
	next.Ingredients = make([]Ingredient, len(p.Ingredients))
	copy(next.Ingredients, p.Ingredients)
	return &next
}
