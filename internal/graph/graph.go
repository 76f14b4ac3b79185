package graph

import (
	"fmt"
)

// ============================================================================
// STATION GRAPH - SNAPSHOT INMUTABLE DE LA RED DE METRO
// ============================================================================
// Construye una vista de adyacencia sobre las estaciones activas a partir de
// la posición en cada línea más las conexiones de intercambio explícitas.
// El snapshot nunca se muta: ante cualquier cambio de líneas/estaciones/
// conexiones se reconstruye completo y se publica de forma atómica.
//
// Orden de vecinos por estación (determinista, PathFinder depende de él):
//   1. Estación en position+1 de la misma línea (si está activa)
//   2. Estación en position-1 de la misma línea (si está activa)
//   3. Conexiones de intercambio donde la estación es from_station,
//      en el orden en que fueron registradas

// Connection kinds stored in station_connections.
const (
	ConnectionNormal      = "normal"
	ConnectionInterchange = "interchange"
)

// Line representa una línea de metro.
type Line struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	Active         bool   `json:"active"`
	BookingEnabled bool   `json:"booking_enabled"`
}

// Station representa una estación con su posición dentro de la línea.
type Station struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	LineID      int64  `json:"line_id"`
	Position    int    `json:"position"`
	Interchange bool   `json:"interchange"`
	Active      bool   `json:"active"`
}

// Connection es una arista dirigida entre dos estaciones. Los intercambios
// bidireccionales requieren dos filas (A→B y B→A); el grafo no infiere la
// inversa.
type Connection struct {
	ID          int64  `json:"id"`
	FromStation int64  `json:"from_station"`
	ToStation   int64  `json:"to_station"`
	Kind        string `json:"kind"`
}

// IntegrityError indica datos de red inconsistentes (self-loop o referencia
// a una estación inexistente). Es fatal: la construcción del grafo se aborta
// en lugar de producir rutas silenciosamente incorrectas.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return "graph integrity: " + e.Reason
}

// Snapshot es la materialización inmutable del grafo en un punto del tiempo.
// Seguro para consultas concurrentes; no tiene estado mutable.
type Snapshot struct {
	stations  map[int64]Station
	lines     map[int64]Line
	adjacency map[int64][]int64
	ordered   []int64 // ids de estaciones activas, orden línea+posición de entrada

	// Warnings acumula intercambios sin fila inversa detectados al construir.
	// No son fatales (la semántica dirigida se preserva) pero el data owner
	// debería revisarlos.
	Warnings []string
}

// Build construye el snapshot a partir del set completo de líneas,
// estaciones y conexiones. Las estaciones inactivas o sobre líneas inactivas
// quedan completamente fuera del grafo (ni nodos ni vecinos).
func Build(lines []Line, stations []Station, conns []Connection) (*Snapshot, error) {
	snap := &Snapshot{
		stations:  make(map[int64]Station),
		lines:     make(map[int64]Line),
		adjacency: make(map[int64][]int64),
	}

	allLines := make(map[int64]Line, len(lines))
	for _, l := range lines {
		allLines[l.ID] = l
		if l.Active {
			snap.lines[l.ID] = l
		}
	}

	// Índice de todas las estaciones (activas o no) para distinguir
	// "inactiva" de "inexistente" al validar conexiones.
	allStations := make(map[int64]Station, len(stations))
	byLinePos := make(map[int64]map[int]int64)
	for _, st := range stations {
		allStations[st.ID] = st
		if !snap.isActive(st, allLines) {
			continue
		}
		snap.stations[st.ID] = st
		snap.ordered = append(snap.ordered, st.ID)
		if byLinePos[st.LineID] == nil {
			byLinePos[st.LineID] = make(map[int]int64)
		}
		byLinePos[st.LineID][st.Position] = st.ID
	}

	// Validar conexiones contra el set COMPLETO: un self-loop o una
	// referencia colgante es corrupción de datos, no una estación apagada.
	for _, cn := range conns {
		if cn.FromStation == cn.ToStation {
			return nil, &IntegrityError{Reason: fmt.Sprintf("self-loop connection on station %d", cn.FromStation)}
		}
		if _, ok := allStations[cn.FromStation]; !ok {
			return nil, &IntegrityError{Reason: fmt.Sprintf("connection %d references unknown from_station %d", cn.ID, cn.FromStation)}
		}
		if _, ok := allStations[cn.ToStation]; !ok {
			return nil, &IntegrityError{Reason: fmt.Sprintf("connection %d references unknown to_station %d", cn.ID, cn.ToStation)}
		}
	}

	// Adyacencia por estación activa: siguiente, anterior, intercambios.
	for _, id := range snap.ordered {
		st := snap.stations[id]
		if next, ok := byLinePos[st.LineID][st.Position+1]; ok {
			snap.addNeighbor(id, next)
		}
		if prev, ok := byLinePos[st.LineID][st.Position-1]; ok {
			snap.addNeighbor(id, prev)
		}
	}
	reverse := make(map[[2]int64]bool)
	for _, cn := range conns {
		if cn.Kind != ConnectionInterchange {
			continue
		}
		reverse[[2]int64{cn.FromStation, cn.ToStation}] = true
	}
	for _, cn := range conns {
		if cn.Kind != ConnectionInterchange {
			continue
		}
		// Extremos inactivos: la arista simplemente no entra al grafo.
		if _, ok := snap.stations[cn.FromStation]; !ok {
			continue
		}
		if _, ok := snap.stations[cn.ToStation]; !ok {
			continue
		}
		snap.addNeighbor(cn.FromStation, cn.ToStation)
		if !reverse[[2]int64{cn.ToStation, cn.FromStation}] {
			snap.Warnings = append(snap.Warnings, fmt.Sprintf(
				"interchange %d→%d has no reverse connection (one-way interchange?)",
				cn.FromStation, cn.ToStation))
		}
	}

	return snap, nil
}

func (s *Snapshot) isActive(st Station, lines map[int64]Line) bool {
	if !st.Active {
		return false
	}
	line, ok := lines[st.LineID]
	return ok && line.Active
}

// addNeighbor agrega una arista colapsando duplicados a una sola.
func (s *Snapshot) addNeighbor(from, to int64) {
	for _, n := range s.adjacency[from] {
		if n == to {
			return
		}
	}
	s.adjacency[from] = append(s.adjacency[from], to)
}

// Station retorna la estación activa con el id dado.
func (s *Snapshot) Station(id int64) (Station, bool) {
	st, ok := s.stations[id]
	return st, ok
}

// StationByCode busca una estación activa por su código único.
func (s *Snapshot) StationByCode(code string) (Station, bool) {
	for _, id := range s.ordered {
		if s.stations[id].Code == code {
			return s.stations[id], true
		}
	}
	return Station{}, false
}

// Line retorna la línea activa con el id dado.
func (s *Snapshot) Line(id int64) (Line, bool) {
	l, ok := s.lines[id]
	return l, ok
}

// Stations retorna todas las estaciones activas en el orden de carga.
func (s *Snapshot) Stations() []Station {
	out := make([]Station, 0, len(s.ordered))
	for _, id := range s.ordered {
		out = append(out, s.stations[id])
	}
	return out
}

// Neighbors retorna los vecinos de una estación en orden determinista.
func (s *Snapshot) Neighbors(id int64) []int64 {
	return s.adjacency[id]
}
