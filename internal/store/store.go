package store

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"museflow/internal/services"
)

// Store implements persistence for users, topics, writing sessions and
// feedback on PostgreSQL. Every session and feedback query is scoped to the
// calling user.
type Store struct {
	db     *sqlx.DB
	sealer services.Sealer
	psql   sq.StatementBuilderType
}

func New(db *sqlx.DB, sealer services.Sealer) *Store {
	if sealer == nil {
		sealer = services.Plaintext{}
	}
	return &Store{
		db:     db,
		sealer: sealer,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}
