package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/atharv3903/towdispatch/internal/domain"
	"github.com/atharv3903/towdispatch/internal/model"
)

//go:embed schema.sql
var schema string

// Store reads and writes the road network, tow trucks and orders in MySQL.
type Store struct {
	DB *sql.DB
}

// Migrate creates the tables if they do not exist.
func (s Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Order loads an order together with the area of its node.
func (s Store) Order(ctx context.Context, id int64) (model.Order, error) {
	var o model.Order
	err := s.DB.QueryRowContext(ctx, `
        SELECT id, client_id, node_id, status, car_value, order_time
        FROM orders
        WHERE id=?
    `, id).Scan(&o.ID, &o.ClientID, &o.NodeID, &o.Status, &o.CarValue, &o.OrderAt)
	if err != nil {
		return model.Order{}, wrap(err, "order %d", id)
	}

	area, err := s.AreaIDByNode(ctx, o.NodeID)
	if err != nil {
		return model.Order{}, err
	}
	o.AreaID = area
	return o, nil
}

func (s Store) AreaIDByNode(ctx context.Context, nodeID int64) (int64, error) {
	var area int64
	err := s.DB.QueryRowContext(ctx, `SELECT area_id FROM nodes WHERE id=?`, nodeID).Scan(&area)
	if err != nil {
		return 0, wrap(err, "area of node %d", nodeID)
	}
	return area, nil
}

// OrderIDs returns up to limit order ids, oldest first.
func (s Store) OrderIDs(ctx context.Context, limit int) ([]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM orders ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, wrap(err, "order ids")
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrap(err, "order ids")
		}
		ids = append(ids, id)
	}
	return ids, wrap(rows.Err(), "order ids")
}

func (s Store) Nodes(ctx context.Context, areaID int64) ([]model.Node, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, x, y FROM nodes WHERE area_id=?`, areaID)
	if err != nil {
		return nil, wrap(err, "nodes of area %d", areaID)
	}
	defer rows.Close()

	nodes := make([]model.Node, 0, 256)
	for rows.Next() {
		var n model.Node
		if err := rows.Scan(&n.ID, &n.X, &n.Y); err != nil {
			return nil, wrap(err, "nodes of area %d", areaID)
		}
		nodes = append(nodes, n)
	}
	return nodes, wrap(rows.Err(), "nodes of area %d", areaID)
}

// Edges returns the segments whose first endpoint lies in areaID.
func (s Store) Edges(ctx context.Context, areaID int64) ([]model.Edge, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT e.node_a_id, e.node_b_id, e.weight
        FROM edges e
        JOIN nodes n ON n.id = e.node_a_id
        WHERE n.area_id=?
        ORDER BY e.id
    `, areaID)
	if err != nil {
		return nil, wrap(err, "edges of area %d", areaID)
	}
	defer rows.Close()

	edges := make([]model.Edge, 0, 256)
	for rows.Next() {
		var e model.Edge
		if err := rows.Scan(&e.NodeA, &e.NodeB, &e.Weight); err != nil {
			return nil, wrap(err, "edges of area %d", areaID)
		}
		edges = append(edges, e)
	}
	return edges, wrap(rows.Err(), "edges of area %d", areaID)
}

// wrap classifies err: sql.ErrNoRows becomes NotFound, anything else Internal.
// A nil err stays nil.
func wrap(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapErrorf(err, domain.ErrNotFound, format+" not found", a...)
	}
	return domain.WrapErrorf(err, domain.ErrInternal, format, a...)
}
