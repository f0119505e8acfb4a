package persistence

import (
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
)

func mapPgError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return member.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return gerrors.Wrap(member.ErrDuplicate, op)
		case "23503": // foreign_key_violation
			return gerrors.Wrap(member.ErrNoParent, op)
		}
	}
	return gerrors.Wrap(err, op)
}
