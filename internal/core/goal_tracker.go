package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// GoalTracker accumulates completed sales into an agent's monthly goal.
type GoalTracker interface {
	// UpdateGoalProgressTx adds amount to the agent's goal for month/year inside tx.
	// Agents without a goal for that month are left untouched.
	UpdateGoalProgressTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, amount decimal.Decimal, month, year int) error
}

type goalTracker struct {
	log logrus.FieldLogger
}

// NewGoalTracker constructs a GoalTracker backed by the sale_goals table.
func NewGoalTracker(log logrus.FieldLogger) GoalTracker {
	return &goalTracker{log: log}
}

func (g *goalTracker) UpdateGoalProgressTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, amount decimal.Decimal, month, year int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE sale_goals
		SET current_amount = current_amount + $1
		WHERE agent_id = $2 AND month = $3 AND year = $4
	`, amount, agentID, month, year)
	if err != nil {
		return fmt.Errorf("failed to update sale goal progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		g.log.WithFields(logrus.Fields{
			"agent_id": agentID,
			"month":    month,
			"year":     year,
		}).Debug("no sale goal configured, progress not recorded")
	}
	return nil
}
