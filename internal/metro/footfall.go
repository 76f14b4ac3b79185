package metro

import (
	"context"
	"database/sql"
	"time"

	"github.com/yourorg/metrogate/internal/models"
)

// FootfallStore mantiene los contadores diarios de entradas/salidas por
// estación. Los incrementos son atómicos a nivel de fila
// (INSERT ... ON DUPLICATE KEY UPDATE), por lo que incrementos concurrentes
// sobre la misma (estación, día) nunca se pierden. Los contadores jamás se
// decrementan; el total siempre se deriva de los dos.
type FootfallStore struct {
	db *sql.DB
}

func NewFootfallStore(db *sql.DB) *FootfallStore {
	return &FootfallStore{db: db}
}

// RecordEntry incrementa en uno el contador de entradas de (station, day),
// creando la fila si es el primer scan del día.
func (f *FootfallStore) RecordEntry(ctx context.Context, stationID int64, day time.Time) error {
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO daily_footfall (station_id, day, entry_count, exit_count)
		VALUES (?, ?, 1, 0)
		ON DUPLICATE KEY UPDATE entry_count = entry_count + 1
	`, stationID, day.Format("2006-01-02"))
	return err
}

// RecordExit incrementa en uno el contador de salidas de (station, day).
func (f *FootfallStore) RecordExit(ctx context.Context, stationID int64, day time.Time) error {
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO daily_footfall (station_id, day, entry_count, exit_count)
		VALUES (?, ?, 0, 1)
		ON DUPLICATE KEY UPDATE exit_count = exit_count + 1
	`, stationID, day.Format("2006-01-02"))
	return err
}

// Report retorna las filas de footfall del rango [from, to] ordenadas por
// fecha descendente.
func (f *FootfallStore) Report(ctx context.Context, from, to time.Time) ([]models.FootfallRow, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT df.station_id, st.name, df.day, df.entry_count, df.exit_count
		FROM daily_footfall df
		JOIN stations st ON st.id = df.station_id
		WHERE df.day BETWEEN ? AND ?
		ORDER BY df.day DESC, st.name
	`, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FootfallRow
	for rows.Next() {
		var r models.FootfallRow
		if err := rows.Scan(&r.StationID, &r.StationName, &r.Date, &r.EntryCount, &r.ExitCount); err != nil {
			return nil, err
		}
		r.Total = r.EntryCount + r.ExitCount
		out = append(out, r)
	}
	return out, rows.Err()
}

// StationTotals agrega el footfall por estación en el rango, ordenado por
// total descendente.
func (f *FootfallStore) StationTotals(ctx context.Context, from, to time.Time) ([]models.StationFootfallTotal, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT df.station_id, st.name,
		       COALESCE(SUM(df.entry_count), 0),
		       COALESCE(SUM(df.exit_count), 0)
		FROM daily_footfall df
		JOIN stations st ON st.id = df.station_id
		WHERE df.day BETWEEN ? AND ?
		GROUP BY df.station_id, st.name
		ORDER BY SUM(df.entry_count) + SUM(df.exit_count) DESC
	`, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StationFootfallTotal
	for rows.Next() {
		var r models.StationFootfallTotal
		if err := rows.Scan(&r.StationID, &r.StationName, &r.Entries, &r.Exits); err != nil {
			return nil, err
		}
		r.Total = r.Entries + r.Exits
		out = append(out, r)
	}
	return out, rows.Err()
}

// TodayTotals retorna el agregado de entradas y salidas de hoy en toda la
// red.
func (f *FootfallStore) TodayTotals(ctx context.Context, today time.Time) (entries, exits int64, err error) {
	err = f.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(entry_count), 0), COALESCE(SUM(exit_count), 0)
		FROM daily_footfall
		WHERE day = ?
	`, today.Format("2006-01-02")).Scan(&entries, &exits)
	return entries, exits, err
}
