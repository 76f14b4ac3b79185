package graph

import (
	"errors"
	"testing"
)

func pathEqual(got, want []int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestShortestPathSameLine(t *testing.T) {
	snap := mustBuildNet(t)

	path, err := snap.ShortestPath(1, 3)
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if !pathEqual(path, []int64{1, 2, 3}) {
		t.Errorf("path = %v, want [1 2 3]", path)
	}
}

func TestShortestPathSameStation(t *testing.T) {
	snap := mustBuildNet(t)

	path, err := snap.ShortestPath(4, 4)
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if !pathEqual(path, []int64{4}) {
		t.Errorf("path = %v, want [4]", path)
	}
}

func TestShortestPathAcrossInterchange(t *testing.T) {
	snap := mustBuildNet(t)

	path, err := snap.ShortestPath(1, 7)
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if !pathEqual(path, []int64{1, 2, 6, 7}) {
		t.Errorf("path = %v, want [1 2 6 7]", path)
	}
}

func TestShortestPathUnknownStation(t *testing.T) {
	snap := mustBuildNet(t)

	if _, err := snap.ShortestPath(1, 999); !errors.Is(err, ErrUnknownStation) {
		t.Errorf("expected ErrUnknownStation, got %v", err)
	}
	if _, err := snap.ShortestPath(999, 1); !errors.Is(err, ErrUnknownStation) {
		t.Errorf("expected ErrUnknownStation, got %v", err)
	}
}

func TestShortestPathDisconnected(t *testing.T) {
	lines, stations, _ := testNetwork()

	// Sin conexiones de intercambio las dos líneas quedan aisladas.
	snap := mustBuild(t, lines, stations, nil)

	if _, err := snap.ShortestPath(1, 7); !errors.Is(err, ErrNoRoute) {
		t.Errorf("expected ErrNoRoute, got %v", err)
	}
}

// TestShortestPathTieBreak verifica el desempate determinista: con dos rutas
// de igual largo, gana la que continúa por la misma línea antes de saltar al
// intercambio.
func TestShortestPathTieBreak(t *testing.T) {
	lines := []Line{
		{ID: 1, Name: "A", Active: true},
		{ID: 2, Name: "B", Active: true},
	}
	// Línea A: 1-2-3, más un atajo por intercambio 1↔4 y 4↔3. De 1 a 3 hay
	// dos rutas de 2 saltos: [1 2 3] y [1 4 3]. Debe ganar siempre la
	// continuación por la misma línea.
	stations := []Station{
		{ID: 1, Name: "a0", Code: "A0", LineID: 1, Position: 0, Active: true},
		{ID: 2, Name: "a1", Code: "A1", LineID: 1, Position: 1, Active: true},
		{ID: 3, Name: "a2", Code: "A2", LineID: 1, Position: 2, Active: true},
		{ID: 4, Name: "b0", Code: "B0", LineID: 2, Position: 0, Active: true},
	}
	conns := []Connection{
		{ID: 1, FromStation: 1, ToStation: 4, Kind: ConnectionInterchange},
		{ID: 2, FromStation: 4, ToStation: 1, Kind: ConnectionInterchange},
		{ID: 3, FromStation: 4, ToStation: 3, Kind: ConnectionInterchange},
		{ID: 4, FromStation: 3, ToStation: 4, Kind: ConnectionInterchange},
	}
	snap := mustBuild(t, lines, stations, conns)

	for i := 0; i < 20; i++ {
		path, err := snap.ShortestPath(1, 3)
		if err != nil {
			t.Fatalf("ShortestPath: %v", err)
		}
		if !pathEqual(path, []int64{1, 2, 3}) {
			t.Fatalf("iteration %d: path = %v, want same-line [1 2 3]", i, path)
		}
	}
}

// TestShortestPathIsMinimal compara el largo de la ruta BFS contra todas las
// distancias calculadas por una segunda pasada independiente.
func TestShortestPathIsMinimal(t *testing.T) {
	snap := mustBuildNet(t)

	// Distancias desde 1 por expansión nivel a nivel.
	dist := map[int64]int{1: 0}
	frontier := []int64{1}
	for len(frontier) > 0 {
		var next []int64
		for _, id := range frontier {
			for _, n := range snap.Neighbors(id) {
				if _, seen := dist[n]; !seen {
					dist[n] = dist[id] + 1
					next = append(next, n)
				}
			}
		}
		frontier = next
	}

	for _, st := range snap.Stations() {
		want, reachable := dist[st.ID]
		path, err := snap.ShortestPath(1, st.ID)
		if !reachable {
			if !errors.Is(err, ErrNoRoute) {
				t.Errorf("station %d: expected ErrNoRoute, got %v", st.ID, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("station %d: %v", st.ID, err)
			continue
		}
		if len(path)-1 != want {
			t.Errorf("station %d: hops = %d, want %d (path %v)", st.ID, len(path)-1, want, path)
		}
	}
}
