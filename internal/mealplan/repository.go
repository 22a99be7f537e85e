package mealplan

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository is a database-backed repository for meal plans. Dates are
// stored as RFC 3339 with explicit offset.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

const planColumns = `id, recipe_id, recipe_name, meal_date, weekday, ingredients,
	notify_enabled, lead_days, creator_id, auto_created, created_at`

// Save inserts or updates a plan.
func (r *Repository) Save(ctx context.Context, p *Plan) error {
	ingredients, err := json.Marshal(p.Ingredients)
	if err != nil {
		return fmt.Errorf("failed to marshal ingredients for plan %s: %w", p.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO meal_plans (`+planColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			recipe_name = excluded.recipe_name,
			meal_date = excluded.meal_date,
			weekday = excluded.weekday,
			ingredients = excluded.ingredients,
			notify_enabled = excluded.notify_enabled,
			lead_days = excluded.lead_days`,
		p.ID, p.RecipeID, p.RecipeName, p.MealDate.Format(time.RFC3339), p.Weekday,
		string(ingredients), boolToInt(p.NotifyEnabled), p.LeadDays, p.CreatorID,
		boolToInt(p.AutoCreated), p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save plan %s: %w", p.ID, err)
	}
	return nil
}

// Get retrieves a plan by id. Returns nil when not found.
func (r *Repository) Get(ctx context.Context, id string) (*Plan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM meal_plans WHERE id = ?`, id)
	p, err := scanPlan(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan %s: %w", id, err)
	}
	return p, nil
}

// List retrieves all plans ordered by meal date.
func (r *Repository) List(ctx context.Context) ([]*Plan, error) {
	return r.query(ctx, `SELECT `+planColumns+` FROM meal_plans ORDER BY meal_date`)
}

// ListByRecipe retrieves all plans referencing a recipe.
func (r *Repository) ListByRecipe(ctx context.Context, recipeID string) ([]*Plan, error) {
	return r.query(ctx,
		`SELECT `+planColumns+` FROM meal_plans WHERE recipe_id = ? ORDER BY meal_date`, recipeID)
}

// ExistsForRecipeOnDate reports whether a plan for the recipe already exists
// on the given date. Used for duplicate prevention during rotation.
func (r *Repository) ExistsForRecipeOnDate(ctx context.Context, recipeID string, date time.Time) (bool, error) {
	day := date.Format("2006-01-02")
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM meal_plans
		WHERE recipe_id = ? AND substr(meal_date, 1, 10) = ?`, recipeID, day)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check plan existence: %w", err)
	}
	return n > 0, nil
}

// Delete removes a plan. Deleting an absent plan is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM meal_plans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete plan %s: %w", id, err)
	}
	return nil
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]*Plan, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		p, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanPlan(scan func(dest ...any) error) (*Plan, error) {
	var p Plan
	var mealDate, createdAt, ingredients string
	var notify, auto int

	if err := scan(&p.ID, &p.RecipeID, &p.RecipeName, &mealDate, &p.Weekday,
		&ingredients, &notify, &p.LeadDays, &p.CreatorID, &auto, &createdAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(ingredients), &p.Ingredients); err != nil {
		return nil, fmt.Errorf("corrupt ingredient list: %w", err)
	}
	p.NotifyEnabled = notify != 0
	p.AutoCreated = auto != 0

	var err error
	if p.MealDate, err = time.Parse(time.RFC3339, mealDate); err != nil {
		return nil, fmt.Errorf("corrupt meal date: %w", err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created timestamp: %w", err)
	}
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
