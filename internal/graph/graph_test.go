package graph

import (
	"errors"
	"testing"
)

// Red de prueba: dos líneas con un intercambio bidireccional.
//
//	Azul:     1 — 2 — 3 — 4
//	Roja:     5 — 6 — 7
//	Intercambio: 2 ↔ 6
func testNetwork() ([]Line, []Station, []Connection) {
	lines := []Line{
		{ID: 1, Name: "Azul", Active: true, BookingEnabled: true},
		{ID: 2, Name: "Roja", Active: true, BookingEnabled: true},
	}
	stations := []Station{
		{ID: 1, Name: "Pajaritos", Code: "PAJ", LineID: 1, Position: 0, Active: true},
		{ID: 2, Name: "Los Héroes", Code: "LHE", LineID: 1, Position: 1, Interchange: true, Active: true},
		{ID: 3, Name: "Baquedano", Code: "BAQ", LineID: 1, Position: 2, Active: true},
		{ID: 4, Name: "Tobalaba", Code: "TOB", LineID: 1, Position: 3, Active: true},
		{ID: 5, Name: "Vespucio Norte", Code: "VNO", LineID: 2, Position: 0, Active: true},
		{ID: 6, Name: "Los Héroes R", Code: "LHR", LineID: 2, Position: 1, Interchange: true, Active: true},
		{ID: 7, Name: "La Cisterna", Code: "LCI", LineID: 2, Position: 2, Active: true},
	}
	conns := []Connection{
		{ID: 1, FromStation: 2, ToStation: 6, Kind: ConnectionInterchange},
		{ID: 2, FromStation: 6, ToStation: 2, Kind: ConnectionInterchange},
	}
	return lines, stations, conns
}

func mustBuild(t *testing.T, lines []Line, stations []Station, conns []Connection) *Snapshot {
	t.Helper()
	snap, err := Build(lines, stations, conns)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return snap
}

func mustBuildNet(t *testing.T) *Snapshot {
	t.Helper()
	lines, stations, conns := testNetwork()
	return mustBuild(t, lines, stations, conns)
}

func TestNeighborOrder(t *testing.T) {
	snap := mustBuildNet(t)

	// Estación intermedia con intercambio: siguiente, anterior, intercambio.
	got := snap.Neighbors(2)
	want := []int64{3, 1, 6}
	if len(got) != len(want) {
		t.Fatalf("neighbors of 2 = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("neighbors of 2 = %v, want %v", got, want)
		}
	}

	// Extremo de línea: solo siguiente.
	got = snap.Neighbors(1)
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("neighbors of 1 = %v, want [2]", got)
	}
}

func TestInactiveStationExcluded(t *testing.T) {
	lines, stations, conns := testNetwork()
	stations[2].Active = false // Baquedano (id 3) fuera de servicio

	snap := mustBuild(t, lines, stations, conns)

	if _, ok := snap.Station(3); ok {
		t.Error("inactive station should not be in the snapshot")
	}
	// El vecino "siguiente" de Los Héroes ya no existe; queda el anterior y
	// el intercambio. La línea queda cortada en el hueco.
	got := snap.Neighbors(2)
	want := []int64{1, 6}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("neighbors of 2 = %v, want %v", got, want)
	}
}

func TestInactiveLineExcludesItsStations(t *testing.T) {
	lines, stations, conns := testNetwork()
	lines[1].Active = false // línea Roja completa fuera

	snap := mustBuild(t, lines, stations, conns)

	for _, id := range []int64{5, 6, 7} {
		if _, ok := snap.Station(id); ok {
			t.Errorf("station %d on inactive line should be excluded", id)
		}
	}
	// El intercambio hacia la línea inactiva tampoco debe aparecer.
	for _, n := range snap.Neighbors(2) {
		if n == 6 {
			t.Error("interchange to a station on an inactive line must not be an edge")
		}
	}
}

func TestSelfLoopIsFatal(t *testing.T) {
	lines, stations, conns := testNetwork()
	conns = append(conns, Connection{ID: 9, FromStation: 4, ToStation: 4, Kind: ConnectionInterchange})

	_, err := Build(lines, stations, conns)
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrityError for self-loop, got %v", err)
	}
}

func TestDanglingReferenceIsFatal(t *testing.T) {
	lines, stations, conns := testNetwork()
	conns = append(conns, Connection{ID: 9, FromStation: 2, ToStation: 999, Kind: ConnectionInterchange})

	_, err := Build(lines, stations, conns)
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrityError for dangling reference, got %v", err)
	}
}

func TestMissingReverseInterchangeWarns(t *testing.T) {
	lines, stations, conns := testNetwork()
	conns = conns[:1] // solo 2→6, sin la inversa

	snap := mustBuild(t, lines, stations, conns)

	if len(snap.Warnings) != 1 {
		t.Fatalf("expected 1 warning for missing reverse pair, got %v", snap.Warnings)
	}
	// La semántica dirigida se preserva: 2→6 existe, 6→2 no.
	found := false
	for _, n := range snap.Neighbors(2) {
		if n == 6 {
			found = true
		}
	}
	if !found {
		t.Error("directed interchange edge 2→6 missing")
	}
	for _, n := range snap.Neighbors(6) {
		if n == 2 {
			t.Error("reverse edge must not be synthesized")
		}
	}
}

func TestDuplicateEdgesCollapse(t *testing.T) {
	lines, stations, conns := testNetwork()
	conns = append(conns, Connection{ID: 3, FromStation: 2, ToStation: 6, Kind: ConnectionInterchange})

	snap := mustBuild(t, lines, stations, conns)

	count := 0
	for _, n := range snap.Neighbors(2) {
		if n == 6 {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate interchange rows should collapse to one edge, got %d", count)
	}
}

func TestStationByCode(t *testing.T) {
	snap := mustBuildNet(t)

	st, ok := snap.StationByCode("BAQ")
	if !ok || st.ID != 3 {
		t.Fatalf("StationByCode(BAQ) = %+v, %v", st, ok)
	}
	if _, ok := snap.StationByCode("NOPE"); ok {
		t.Error("unknown code should not resolve")
	}
}
