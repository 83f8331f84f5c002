package store

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/roach88/rmlplan/internal/plan"
)

// ErrFingerprintConflict is returned when a stored plan has the fingerprint
// of the plan being written but a different structure.
var ErrFingerprintConflict = errors.New("fingerprint belongs to a different plan")

// PlanRecord is the catalog entry of a stored plan.
type PlanRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
	NodeCount   int    `json:"node_count"`
	EdgeCount   int    `json:"edge_count"`
	Seq         int64  `json:"seq"`
}

// WritePlan stores a plan with its nodes and edges under a new id.
//
// Plans are content-addressed by fingerprint: writing a plan isomorphic to
// one already stored returns the existing record and inserts nothing, so
// no id is consumed either. A stored plan that shares the fingerprint but
// not the structure fails with ErrFingerprintConflict.
//
// The plan's canonical JSON is stored alongside the rows; ReadPlan checks
// the rebuilt plan against its fingerprint.
func (s *Store) WritePlan(ctx context.Context, name string, g *plan.Graph) (PlanRecord, error) {
	if g == nil {
		return PlanRecord{}, errors.New("write plan: nil plan")
	}

	fingerprint, err := g.Fingerprint()
	if err != nil {
		return PlanRecord{}, errors.Wrap(err, "write plan")
	}
	document, err := g.CanonicalJSON()
	if err != nil {
		return PlanRecord{}, errors.Wrap(err, "write plan")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PlanRecord{}, errors.Wrap(err, "write plan: begin tx")
	}
	defer tx.Rollback() // No-op if committed

	existing, err := scanPlanRecord(tx.QueryRowContext(ctx, `
		SELECT id, name, fingerprint, node_count, edge_count, seq
		FROM plans
		WHERE fingerprint = ?
	`, fingerprint))
	switch {
	case err == nil:
		stored, err := rebuildPlan(ctx, tx, existing.ID)
		if err != nil {
			return PlanRecord{}, errors.Wrap(err, "write plan")
		}
		same, err := plan.Isomorphic(stored, g)
		if err != nil {
			return PlanRecord{}, errors.Wrap(err, "write plan")
		}
		if !same {
			return PlanRecord{}, errors.Wrapf(ErrFingerprintConflict, "write plan: stored plan %s", existing.ID)
		}
		slog.Info("plan already stored", "id", existing.ID, "fingerprint", fingerprint)
		return existing, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return PlanRecord{}, errors.Wrap(err, "write plan: lookup fingerprint")
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM plans`).Scan(&seq); err != nil {
		return PlanRecord{}, errors.Wrap(err, "write plan: next seq")
	}

	rec := PlanRecord{
		ID:          s.ids.Generate(),
		Name:        name,
		Fingerprint: fingerprint,
		NodeCount:   g.NodeCount(),
		EdgeCount:   g.EdgeCount(),
		Seq:         seq,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (id, name, fingerprint, document, node_count, edge_count, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.Fingerprint, string(document), rec.NodeCount, rec.EdgeCount, rec.Seq)
	if err != nil {
		return PlanRecord{}, errors.Wrap(err, "write plan: insert plan")
	}

	if err := writeNodes(ctx, tx, rec.ID, g); err != nil {
		return PlanRecord{}, err
	}
	if err := writeEdges(ctx, tx, rec.ID, g); err != nil {
		return PlanRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return PlanRecord{}, errors.Wrap(err, "write plan: commit")
	}

	slog.Info("plan stored", "id", rec.ID, "name", rec.Name, "nodes", rec.NodeCount, "edges", rec.EdgeCount)
	return rec, nil
}

func writeNodes(ctx context.Context, tx *sql.Tx, planID string, g *plan.Graph) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO plan_nodes (plan_id, idx, node_id, kind, config)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "write plan: prepare nodes")
	}
	defer stmt.Close()

	for i, n := range g.Nodes() {
		cfg, err := marshalConfig(n.Operator)
		if err != nil {
			return errors.Wrapf(err, "write plan: node %s", n.ID)
		}
		if _, err := stmt.ExecContext(ctx, planID, i, n.ID, n.Operator.Kind(), cfg); err != nil {
			return errors.Wrapf(err, "write plan: insert node %s", n.ID)
		}
	}
	return nil
}

func writeEdges(ctx context.Context, tx *sql.Tx, planID string, g *plan.Graph) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO plan_edges (plan_id, seq, from_idx, to_idx, key, value)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "write plan: prepare edges")
	}
	defer stmt.Close()

	for i, e := range g.Edges() {
		if _, err := stmt.ExecContext(ctx, planID, i, int(e.From), int(e.To), string(e.Key), string(e.Value)); err != nil {
			return errors.Wrapf(err, "write plan: insert edge %d", i)
		}
	}
	return nil
}
