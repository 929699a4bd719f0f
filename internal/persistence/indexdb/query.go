package indexdb

import (
	"context"
	"database/sql"
)

// RecentActions returns the newest actions, optionally for one machine.
func (s *SQLiteIndex) RecentActions(ctx context.Context, machineID string, limit int) ([]ActionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	const cols = `id,stamp,machine_id,owner,action,ok,code,last_action,raw_json`
	if machineID == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+cols+` FROM actions ORDER BY stamp DESC, id DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+cols+` FROM actions WHERE machine_id = ? ORDER BY stamp DESC, id DESC LIMIT ?`, machineID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActionRow
	for rows.Next() {
		var r ActionRow
		if err := rows.Scan(&r.ID, &r.Stamp, &r.MachineID, &r.Owner, &r.Action, &r.OK, &r.Code, &r.LastAction, &r.RawJSON); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Snapshots returns the newest recorded snapshots.
func (s *SQLiteIndex) Snapshots(ctx context.Context, limit int) ([]SnapshotRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT stamp,path,world_id,machines,obstacles,resources,zones FROM snapshots ORDER BY stamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		if err := rows.Scan(&r.Stamp, &r.Path, &r.WorldID, &r.Machines, &r.Obstacles, &r.Resources, &r.Zones); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
