package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/roach88/rmlplan/internal/plan"
)

// ErrPlanNotFound is returned when no plan matches the requested id.
var ErrPlanNotFound = errors.New("plan not found")

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlanRecord(row rowScanner) (PlanRecord, error) {
	var rec PlanRecord
	err := row.Scan(&rec.ID, &rec.Name, &rec.Fingerprint, &rec.NodeCount, &rec.EdgeCount, &rec.Seq)
	return rec, err
}

// ListPlans returns every stored plan.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) when the catalog is empty.
func (s *Store) ListPlans(ctx context.Context) ([]PlanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, fingerprint, node_count, edge_count, seq
		FROM plans
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query plans")
	}
	defer rows.Close()

	records := []PlanRecord{}
	for rows.Next() {
		rec, err := scanPlanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan plan")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate plans")
	}
	return records, nil
}

// FindByFingerprint returns the plan with the given fingerprint, if any.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (PlanRecord, bool, error) {
	rec, err := scanPlanRecord(s.db.QueryRowContext(ctx, `
		SELECT id, name, fingerprint, node_count, edge_count, seq
		FROM plans
		WHERE fingerprint = ?
	`, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return PlanRecord{}, false, nil
	}
	if err != nil {
		return PlanRecord{}, false, errors.Wrap(err, "find plan by fingerprint")
	}
	return rec, true, nil
}

// ReadPlan loads a stored plan and rebuilds its graph. The rebuilt graph
// must reproduce the stored fingerprint.
func (s *Store) ReadPlan(ctx context.Context, id string) (PlanRecord, *plan.Graph, error) {
	rec, err := scanPlanRecord(s.db.QueryRowContext(ctx, `
		SELECT id, name, fingerprint, node_count, edge_count, seq
		FROM plans
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return PlanRecord{}, nil, errors.Wrapf(ErrPlanNotFound, "plan %s", id)
	}
	if err != nil {
		return PlanRecord{}, nil, errors.Wrapf(err, "read plan %s", id)
	}

	g, err := rebuildPlan(ctx, s.db, id)
	if err != nil {
		return PlanRecord{}, nil, err
	}

	fingerprint, err := g.Fingerprint()
	if err != nil {
		return PlanRecord{}, nil, errors.Wrapf(err, "read plan %s", id)
	}
	if fingerprint != rec.Fingerprint {
		return PlanRecord{}, nil, errors.Newf("read plan %s: fingerprint mismatch: stored %s, rebuilt %s",
			id, rec.Fingerprint, fingerprint)
	}
	return rec, g, nil
}

// ReadDocument returns the canonical JSON stored with a plan.
func (s *Store) ReadDocument(ctx context.Context, id string) (string, error) {
	var document string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM plans WHERE id = ?`, id).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrapf(ErrPlanNotFound, "plan %s", id)
	}
	if err != nil {
		return "", errors.Wrapf(err, "read document %s", id)
	}
	return document, nil
}

// rebuildPlan reads the rows of a stored plan and reassembles its graph.
func rebuildPlan(ctx context.Context, q querier, planID string) (*plan.Graph, error) {
	nodes, err := readNodes(ctx, q, planID)
	if err != nil {
		return nil, err
	}
	edges, err := readEdges(ctx, q, planID)
	if err != nil {
		return nil, err
	}

	g, err := plan.Rebuild(nodes, edges)
	if err != nil {
		return nil, errors.Wrapf(err, "read plan %s", planID)
	}
	return g, nil
}

func readNodes(ctx context.Context, q querier, planID string) ([]plan.PlanNode, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT node_id, kind, config
		FROM plan_nodes
		WHERE plan_id = ?
		ORDER BY idx ASC
	`, planID)
	if err != nil {
		return nil, errors.Wrap(err, "query plan nodes")
	}
	defer rows.Close()

	var nodes []plan.PlanNode
	for rows.Next() {
		var nodeID, kind, config string
		if err := rows.Scan(&nodeID, &kind, &config); err != nil {
			return nil, errors.Wrap(err, "scan plan node")
		}
		op, err := unmarshalConfig(kind, config)
		if err != nil {
			return nil, errors.Wrapf(err, "node %s", nodeID)
		}
		nodes = append(nodes, plan.PlanNode{ID: nodeID, Operator: op})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate plan nodes")
	}
	return nodes, nil
}

func readEdges(ctx context.Context, q querier, planID string) ([]plan.PlanEdge, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT from_idx, to_idx, key, value
		FROM plan_edges
		WHERE plan_id = ?
		ORDER BY seq ASC
	`, planID)
	if err != nil {
		return nil, errors.Wrap(err, "query plan edges")
	}
	defer rows.Close()

	var edges []plan.PlanEdge
	for rows.Next() {
		var from, to int
		var key, value string
		if err := rows.Scan(&from, &to, &key, &value); err != nil {
			return nil, errors.Wrap(err, "scan plan edge")
		}
		edges = append(edges, plan.PlanEdge{
			From:  plan.NodeIndex(from),
			To:    plan.NodeIndex(to),
			Key:   plan.EdgeKey(key),
			Value: plan.EdgeValue(value),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate plan edges")
	}
	return edges, nil
}
