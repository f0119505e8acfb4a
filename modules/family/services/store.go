package services

import (
	"context"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
)

// Store is the persistence collaborator of an import run.
type Store interface {
	Ping(ctx context.Context) error
	// InTx runs fn in one transaction; nothing is visible to readers before fn returns nil.
	InTx(ctx context.Context, fn func(context.Context) error) error
	// Savepoint isolates one record's statements inside the transaction of ctx.
	Savepoint(ctx context.Context, fn func(context.Context) error) error
	Members() member.Repository
}
