package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Repository is a database-backed repository for recipes.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Save inserts or updates a recipe.
func (r *Repository) Save(ctx context.Context, rec Recipe) error {
	ingredients, err := json.Marshal(rec.Ingredients)
	if err != nil {
		return fmt.Errorf("failed to marshal ingredients for recipe %s: %w", rec.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO recipes (id, name, ingredients) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, ingredients = excluded.ingredients`,
		rec.ID, rec.Name, string(ingredients))
	if err != nil {
		return fmt.Errorf("failed to save recipe %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a recipe by its ID. Returns nil when not found.
func (r *Repository) Get(ctx context.Context, id string) (*Recipe, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, ingredients FROM recipes WHERE id = ?`, id)

	rec, err := scanRecipe(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recipe %s: %w", id, err)
	}
	return rec, nil
}

// List retrieves all recipes ordered by name.
func (r *Repository) List(ctx context.Context) ([]Recipe, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, ingredients FROM recipes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []Recipe
	for rows.Next() {
		rec, err := scanRecipe(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, *rec)
	}
	return recipes, rows.Err()
}

// Delete removes the recipe row. Cascading deletion of meal plans and their
// ingredient reminders is orchestrated by mealplan.Manager.DeleteRecipe.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete recipe %s: %w", id, err)
	}
	return nil
}

func scanRecipe(scan func(dest ...any) error) (*Recipe, error) {
	var rec Recipe
	var ingredients string
	if err := scan(&rec.ID, &rec.Name, &ingredients); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ingredients), &rec.Ingredients); err != nil {
		return nil, fmt.Errorf("corrupt ingredient list: %w", err)
	}
	return &rec, nil
}
