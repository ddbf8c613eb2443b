package warehouse

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adsync-cli/internal/sink"
)

// Loader runs the merge-upsert protocol: stage the artifact, merge into
// the target by composite key, drop the staging table.
type Loader struct {
	wh      *Warehouse
	target  string
	staging string
}

// NewLoader creates a Loader for the given target and staging tables.
func NewLoader(wh *Warehouse, target, staging string) *Loader {
	return &Loader{wh: wh, target: target, staging: staging}
}

// Load executes the protocol against the NDJSON artifact at path and
// returns the number of rows staged.
//
// A staging-load failure is fatal and propagated. A merge failure is
// logged and swallowed, and the staging table is dropped either way;
// that asymmetry mirrors long-standing pipeline behavior, though it
// discards the staging rows a retry would need. Re-running with the
// same artifact leaves the target table unchanged.
func (l *Loader) Load(ctx context.Context, path string) (int64, error) {
	log := zap.L().With(zap.String("component", "warehouse.loader"))

	records, err := sink.ReadLines[map[string]any](path)
	if err != nil {
		return 0, eris.Wrapf(err, "loader: read artifact %s", path)
	}

	if err := l.wh.EnsureTable(ctx, l.target, true); err != nil {
		return 0, err
	}
	if err := l.wh.EnsureTable(ctx, l.staging, false); err != nil {
		return 0, err
	}

	staged, err := l.wh.LoadRows(ctx, l.staging, records)
	if err != nil {
		return 0, err
	}
	log.Info("staging load complete",
		zap.String("table", l.staging),
		zap.Int64("rows", staged),
	)

	merged, err := l.wh.MergeUpsert(ctx, l.target, l.staging)
	if err != nil {
		log.Error("merge failed",
			zap.String("target", l.target),
			zap.String("staging", l.staging),
			zap.Error(err),
		)
	} else {
		log.Info("merge complete",
			zap.String("target", l.target),
			zap.Int64("rows", merged),
		)
	}

	if err := l.wh.DropTable(ctx, l.staging); err != nil {
		log.Warn("failed to drop staging table", zap.Error(err))
	}

	return staged, nil
}
