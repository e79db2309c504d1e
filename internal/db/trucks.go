package db

import (
	"context"
	"strings"

	"github.com/atharv3903/towdispatch/internal/domain"
	"github.com/atharv3903/towdispatch/internal/model"
)

const truckColumns = `id, driver_id, status, area_id, node_id, updated_at`

func (s Store) TowTruck(ctx context.Context, id int64) (model.TowTruck, error) {
	var t model.TowTruck
	err := s.DB.QueryRowContext(ctx, `SELECT `+truckColumns+` FROM tow_trucks WHERE id=?`, id).
		Scan(&t.ID, &t.DriverID, &t.Status, &t.AreaID, &t.NodeID, &t.UpdatedAt)
	if err != nil {
		return model.TowTruck{}, wrap(err, "tow truck %d", id)
	}
	return t, nil
}

func (s Store) ListTowTrucks(ctx context.Context, f model.TruckFilter) ([]model.TowTruck, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	if f.AreaID != nil {
		where = append(where, "area_id=?")
		args = append(args, *f.AreaID)
	}

	q := `SELECT ` + truckColumns + ` FROM tow_trucks`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"
	if f.PageSize >= 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.PageSize, f.Page*f.PageSize)
	}

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap(err, "tow trucks")
	}
	defer rows.Close()

	trucks := []model.TowTruck{}
	for rows.Next() {
		var t model.TowTruck
		if err := rows.Scan(&t.ID, &t.DriverID, &t.Status, &t.AreaID, &t.NodeID, &t.UpdatedAt); err != nil {
			return nil, wrap(err, "tow trucks")
		}
		trucks = append(trucks, t)
	}
	return trucks, wrap(rows.Err(), "tow trucks")
}

// AvailableTrucks returns every available tow truck of areaID.
func (s Store) AvailableTrucks(ctx context.Context, areaID int64) ([]model.TowTruck, error) {
	return s.ListTowTrucks(ctx, model.TruckFilter{PageSize: -1, Status: model.TruckAvailable, AreaID: &areaID})
}

func (s Store) UpdateLocation(ctx context.Context, truckID, nodeID int64) error {
	return s.updateTruck(ctx, truckID, `UPDATE tow_trucks SET node_id=? WHERE id=?`, nodeID, truckID)
}

func (s Store) UpdateStatus(ctx context.Context, truckID int64, status string) error {
	switch status {
	case model.TruckAvailable, model.TruckBusy, model.TruckOffline:
	default:
		return domain.NewErrorf(domain.ErrBadParamInput, "unknown tow truck status %q", status)
	}
	return s.updateTruck(ctx, truckID, `UPDATE tow_trucks SET status=? WHERE id=?`, status, truckID)
}

// updateTruck runs an update and reports NotFound for an unknown truck.
// MySQL counts unchanged rows as unaffected, so a zero count is confirmed
// with a lookup.
func (s Store) updateTruck(ctx context.Context, truckID int64, q string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return wrap(err, "update tow truck %d", truckID)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = s.TowTruck(ctx, truckID)
	return err
}
