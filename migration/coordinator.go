package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/imtaco/sqlcrossover/source"
	"github.com/imtaco/sqlcrossover/target"
)

// withScope runs fn against the source. When transactional, fn reads from
// one snapshot and the target holds one open transaction; both commit only
// if fn succeeds and both roll back otherwise, panics included. Without a
// scope fn reads the plain connection and the target commits per batch.
func withScope(ctx context.Context, src source.SourceDB, tgt target.Target, transactional bool, fn func(q source.Querier) error) (err error) {
	if !transactional {
		return fn(src.Querier())
	}

	scoped, ok := tgt.(target.Transactional)
	if !ok {
		return fmt.Errorf("target %s cannot run transactionally", tgt.Name())
	}

	snap, err := src.BeginSnapshot(ctx)
	if err != nil {
		return err
	}
	if err := scoped.Begin(ctx); err != nil {
		rollbackSnapshot(snap)
		return fmt.Errorf("failed to begin target transaction: %w", err)
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		log.Printf("[Coordinator] Rolling back")
		if rbErr := scoped.Rollback(); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to roll back target: %w", rbErr))
		}
		rollbackSnapshot(snap)
	}()

	if err := fn(snap); err != nil {
		return err
	}

	if err := scoped.Commit(); err != nil {
		return fmt.Errorf("failed to commit target: %w", err)
	}
	finished = true
	if err := snap.Commit(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		// target data is already committed; the snapshot was read-only
		log.Printf("[Coordinator] WARNING: failed to release source snapshot: %v", err)
	}
	return nil
}

func rollbackSnapshot(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Printf("[Coordinator] WARNING: failed to release source snapshot: %v", err)
	}
}
