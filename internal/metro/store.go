package metro

import (
	"context"
	"database/sql"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yourorg/metrogate/internal/cache"
	"github.com/yourorg/metrogate/internal/graph"
	"github.com/yourorg/metrogate/internal/metrics"
)

// ============================================================================
// METRO STORE - DATOS DE RED + PROVEEDOR DE SNAPSHOT
// ============================================================================
// Lee líneas, estaciones y conexiones desde MariaDB y publica snapshots
// inmutables del grafo. El snapshot se cachea y se invalida ante cualquier
// escritura administrativa; las reconstrucciones concurrentes tras una
// invalidación se colapsan en una sola con singleflight.

const snapshotKey = "graph:snapshot"

// Store da acceso a los datos de la red de metro.
type Store struct {
	db    *sql.DB
	cache *cache.Cache
	group singleflight.Group
}

// NewStore crea el store de red. El caché puede compartirse con otros
// componentes; este store solo usa keys con prefijo "graph:".
func NewStore(db *sql.DB, c *cache.Cache) *Store {
	return &Store{db: db, cache: c}
}

// Snapshot retorna el snapshot vigente del grafo, reconstruyéndolo desde la
// base de datos si el caché fue invalidado. Los lectores conservan la
// referencia retornada durante toda su consulta; ninguna escritura posterior
// la muta.
func (s *Store) Snapshot(ctx context.Context) (*graph.Snapshot, error) {
	if v, found := s.cache.Get(snapshotKey); found {
		return v.(*graph.Snapshot), nil
	}

	v, err, _ := s.group.Do(snapshotKey, func() (interface{}, error) {
		lines, err := s.Lines(ctx)
		if err != nil {
			return nil, err
		}
		stations, err := s.Stations(ctx)
		if err != nil {
			return nil, err
		}
		conns, err := s.Connections(ctx)
		if err != nil {
			return nil, err
		}

		snap, err := graph.Build(lines, stations, conns)
		if err != nil {
			return nil, err
		}
		for _, w := range snap.Warnings {
			log.Printf("⚠️ [GRAPH] %s", w)
		}
		metrics.GraphRebuilds.Inc()

		s.cache.Set(snapshotKey, snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*graph.Snapshot), nil
}

// Invalidate descarta el snapshot cacheado. Llamar tras CUALQUIER escritura
// de líneas, estaciones o conexiones.
func (s *Store) Invalidate() {
	s.cache.Delete(snapshotKey)
}

// Lines retorna todas las líneas (activas e inactivas) ordenadas por nombre.
func (s *Store) Lines(ctx context.Context) ([]graph.Line, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, color, active, booking_enabled
		FROM metro_lines
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []graph.Line
	for rows.Next() {
		var l graph.Line
		if err := rows.Scan(&l.ID, &l.Name, &l.Color, &l.Active, &l.BookingEnabled); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Stations retorna todas las estaciones ordenadas por línea y posición. El
// orden importa: es el orden de carga que el snapshot preserva.
func (s *Store) Stations(ctx context.Context) ([]graph.Station, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, code, line_id, position, interchange, active
		FROM stations
		ORDER BY line_id, position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []graph.Station
	for rows.Next() {
		var st graph.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Code, &st.LineID, &st.Position, &st.Interchange, &st.Active); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// Connections retorna todas las conexiones en orden de registro (id).
func (s *Store) Connections(ctx context.Context) ([]graph.Connection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_station, to_station, kind
		FROM station_connections
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []graph.Connection
	for rows.Next() {
		var cn graph.Connection
		if err := rows.Scan(&cn.ID, &cn.FromStation, &cn.ToStation, &cn.Kind); err != nil {
			return nil, err
		}
		conns = append(conns, cn)
	}
	return conns, rows.Err()
}

// SetLineActive inicia o detiene el servicio de una línea e invalida el
// snapshot.
func (s *Store) SetLineActive(ctx context.Context, lineID int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE metro_lines SET active = ? WHERE id = ?`, active, lineID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	s.Invalidate()
	return nil
}

// SetLineBooking habilita o deshabilita la venta de tickets en una línea.
// No afecta la topología del grafo, pero se invalida igual para mantener una
// sola regla: toda escritura invalida.
func (s *Store) SetLineBooking(ctx context.Context, lineID int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE metro_lines SET booking_enabled = ? WHERE id = ?`, enabled, lineID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	s.Invalidate()
	return nil
}

// LineByID retorna una línea cualquiera (incluso inactiva), para pantallas
// de administración.
func (s *Store) LineByID(ctx context.Context, lineID int64) (graph.Line, error) {
	var l graph.Line
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, color, active, booking_enabled
		FROM metro_lines WHERE id = ?
	`, lineID).Scan(&l.ID, &l.Name, &l.Color, &l.Active, &l.BookingEnabled)
	return l, err
}

// StationNames resuelve ids → nombres para expandir rutas almacenadas en
// tickets (la ruta guardada puede referenciar estaciones hoy inactivas).
func (s *Store) StationNames(ctx context.Context, ids []int64) (map[int64]graph.Station, error) {
	out := make(map[int64]graph.Station, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	// Consulta por id individual: las rutas son cortas y esto evita armar
	// un IN dinámico.
	stmt, err := s.db.PrepareContext(ctx, `
		SELECT id, name, code, line_id, position, interchange, active
		FROM stations WHERE id = ?
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		var st graph.Station
		err := stmt.QueryRowContext(ctx, id).Scan(&st.ID, &st.Name, &st.Code, &st.LineID, &st.Position, &st.Interchange, &st.Active)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = st
	}
	return out, nil
}

// WarmSnapshot precarga el snapshot en el arranque para que la primera
// compra no pague la reconstrucción.
func (s *Store) WarmSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.Snapshot(ctx); err != nil {
		log.Printf("⚠️ [GRAPH] warm-up falló: %v", err)
	}
}
