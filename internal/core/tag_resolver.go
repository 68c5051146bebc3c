package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TagResolver resolves the reserved tag that forces items onto a separate order.
type TagResolver interface {
	// SystemTagTx returns the system tag, or nil when the catalog does not define it.
	SystemTagTx(ctx context.Context, tx pgx.Tx) (*Tag, error)
}

type tagResolver struct {
	name string
}

// NewTagResolver constructs a TagResolver that looks up the system tag by name.
func NewTagResolver(name string) TagResolver {
	return &tagResolver{name: name}
}

func (r *tagResolver) SystemTagTx(ctx context.Context, tx pgx.Tx) (*Tag, error) {
	var t Tag
	err := tx.QueryRow(ctx, `
		SELECT id, name, is_system
		FROM tags
		WHERE name = $1 AND is_system = true
	`, r.name).Scan(&t.ID, &t.Name, &t.IsSystem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve system tag %q: %w", r.name, err)
	}
	return &t, nil
}
