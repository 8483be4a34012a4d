package repository

import (
	"context"
	"fmt"

	"chefbot/internal/model"
)

// InsertRecipe archives a served generation. The journal feeds admin stats
// only — correctness of the balance never depends on it.
func (r *AccountingRepo) InsertRecipe(ctx context.Context, rec *model.Recipe) error {
	query := `INSERT INTO recipes (user_id, prompt, response, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.dbPool.Exec(ctx, query, rec.UserID, rec.Prompt, rec.Response, rec.CreatedAt); err != nil {
		return fmt.Errorf("insert recipe for %d: %w", rec.UserID, err)
	}
	return nil
}

// Stats aggregates the admin dashboard counters in one snapshot.
func (r *AccountingRepo) Stats(ctx context.Context) (*model.Stats, error) {
	var s model.Stats

	query := `
		SELECT
			(SELECT count(*) FROM accounts),
			(SELECT count(*) FROM accounts WHERE created_at >= date_trunc('day', now())),
			(SELECT count(*) FROM recipes),
			(SELECT count(*) FROM recipes WHERE created_at >= date_trunc('day', now())),
			(SELECT coalesce(sum(amount), 0) FROM payments WHERE status = 'succeeded')`

	err := r.dbPool.QueryRow(ctx, query).Scan(
		&s.TotalUsers, &s.NewToday, &s.TotalRecipes, &s.RecipesToday, &s.TotalRevenue,
	)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}

	rows, err := r.dbPool.Query(ctx, `
		SELECT prompt, count(*) AS uses
		FROM recipes
		GROUP BY prompt
		ORDER BY uses DESC, prompt
		LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("load top prompts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pc model.PromptCount
		if err := rows.Scan(&pc.Prompt, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan top prompt: %w", err)
		}
		s.TopPrompts = append(s.TopPrompts, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top prompts: %w", err)
	}
	return &s, nil
}
