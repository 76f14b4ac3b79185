package ticketing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/metrogate/internal/graph"
	"github.com/yourorg/metrogate/internal/models"
)

// ============================================================================
// Store en memoria con la misma semántica compare-and-set que el SQLStore,
// para ejercitar el ciclo de vida y sus garantías de concurrencia sin base
// de datos.
// ============================================================================

type memStore struct {
	mu       sync.Mutex
	seq      int64
	balances map[int64]int64
	tickets  map[int64]*models.Ticket
	byUUID   map[uuid.UUID]int64
	scans    []models.TicketScan
}

func newMemStore() *memStore {
	return &memStore{
		balances: make(map[int64]int64),
		tickets:  make(map[int64]*models.Ticket),
		byUUID:   make(map[uuid.UUID]int64),
	}
}

func (m *memStore) CreateTicketWithPayment(ctx context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[t.UserID] < t.Price {
		return ErrInsufficientBalance
	}
	m.balances[t.UserID] -= t.Price
	m.insertLocked(t)
	return nil
}

func (m *memStore) CreateOfflineTicket(ctx context.Context, t *models.Ticket, scans []*models.TicketScan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(t)
	for _, sc := range scans {
		sc.TicketRow = t.ID
		m.scans = append(m.scans, *sc)
	}
	return nil
}

func (m *memStore) insertLocked(t *models.Ticket) {
	m.seq++
	t.ID = m.seq
	cp := *t
	m.tickets[t.ID] = &cp
	m.byUUID[t.TicketID] = t.ID
}

func (m *memStore) TicketByUUID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.byUUID[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	cp := *m.tickets[row]
	return &cp, nil
}

func (m *memStore) TransitionStatus(ctx context.Context, ticketRow int64, from, to string, entryTime, exitTime *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketRow]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	if entryTime != nil {
		et := *entryTime
		t.EntryTime = &et
	}
	if exitTime != nil {
		xt := *exitTime
		t.ExitTime = &xt
	}
	return true, nil
}

func (m *memStore) AppendScan(ctx context.Context, scan *models.TicketScan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	scan.ID = m.seq
	m.scans = append(m.scans, *scan)
	return nil
}

func (m *memStore) status(row int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[row].Status
}

func (m *memStore) scanCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scans)
}

type memFootfall struct {
	mu      sync.Mutex
	entries map[string]int64
	exits   map[string]int64
}

func newMemFootfall() *memFootfall {
	return &memFootfall{entries: make(map[string]int64), exits: make(map[string]int64)}
}

func footfallKey(stationID int64, day time.Time) string {
	return fmt.Sprintf("%d:%s", stationID, day.Format("2006-01-02"))
}

func (m *memFootfall) RecordEntry(ctx context.Context, stationID int64, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[footfallKey(stationID, day)]++
	return nil
}

func (m *memFootfall) RecordExit(ctx context.Context, stationID int64, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exits[footfallKey(stationID, day)]++
	return nil
}

// ============================================================================
// Fixture: línea única A(0)-B(1)-C(2).
// ============================================================================

func testSnapshot(t *testing.T) *graph.Snapshot {
	t.Helper()
	snap, err := graph.Build(
		[]graph.Line{{ID: 1, Name: "L1", Active: true, BookingEnabled: true}},
		[]graph.Station{
			{ID: 1, Name: "Alfa", Code: "A", LineID: 1, Position: 0, Active: true},
			{ID: 2, Name: "Beta", Code: "B", LineID: 1, Position: 1, Active: true},
			{ID: 3, Name: "Gamma", Code: "C", LineID: 1, Position: 2, Active: true},
		},
		nil,
	)
	if err != nil {
		t.Fatalf("graph.Build: %v", err)
	}
	return snap
}

type fixture struct {
	store    *memStore
	footfall *memFootfall
	svc      *Service
	snap     *graph.Snapshot
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFixture(t *testing.T) *fixture {
	store := newMemStore()
	footfall := newMemFootfall()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	svc := NewService(store, footfall, Config{
		Expiry: 24 * time.Hour,
		Fare:   graph.FareConfig{BaseFare: 10, PerStationFare: 5},
		Now:    clock.Now,
	})
	return &fixture{store: store, footfall: footfall, svc: svc, snap: testSnapshot(t), clock: clock}
}

func (f *fixture) buyTicket(t *testing.T, origin, dest int64) *models.Ticket {
	t.Helper()
	f.store.mu.Lock()
	f.store.balances[1] += 1000
	f.store.mu.Unlock()

	o, _ := f.snap.Station(origin)
	d, _ := f.snap.Station(dest)
	path, err := f.snap.ShortestPath(origin, dest)
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	fare := f.svc.FareConfig().Fare(path)
	ticket, err := f.svc.Purchase(context.Background(), 1, o, d, path, fare)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	return ticket
}

func (f *fixture) scan(t *testing.T, id uuid.UUID, stationID int64, kind string) (*models.TicketScan, *models.Ticket) {
	t.Helper()
	st, _ := f.snap.Station(stationID)
	scan, ticket, err := f.svc.AttemptScan(context.Background(), f.snap, id, st, kind, 99)
	if err != nil {
		t.Fatalf("AttemptScan(%s %s): %v", kind, st.Code, err)
	}
	return scan, ticket
}

// ============================================================================
// Tests
// ============================================================================

func TestFullJourney(t *testing.T) {
	f := newFixture(t)
	ticket := f.buyTicket(t, 1, 3)

	if ticket.Status != models.TicketActive {
		t.Fatalf("new ticket status = %s, want active", ticket.Status)
	}
	if ticket.Price != 20 {
		t.Fatalf("fare = %d, want 20 (base 10 + 2 estaciones × 5)", ticket.Price)
	}

	scan, after := f.scan(t, ticket.TicketID, 1, models.ScanEntry)
	if !scan.Success || after.Status != models.TicketInUse {
		t.Fatalf("entry: success=%v status=%s, want success in_use (%s)", scan.Success, after.Status, scan.Message)
	}
	if after.EntryTime == nil {
		t.Error("entry_time not set after entry scan")
	}

	scan, after = f.scan(t, ticket.TicketID, 3, models.ScanExit)
	if !scan.Success || after.Status != models.TicketUsed {
		t.Fatalf("exit: success=%v status=%s, want success used (%s)", scan.Success, after.Status, scan.Message)
	}
	if after.ExitTime == nil {
		t.Error("exit_time not set after exit scan")
	}

	// Segundo exit: guard fallido, estado intacto, fila de auditoría extra.
	before := f.store.scanCount()
	scan, after = f.scan(t, ticket.TicketID, 3, models.ScanExit)
	if scan.Success {
		t.Error("re-exit on used ticket must fail")
	}
	if after.Status != models.TicketUsed {
		t.Errorf("status after failed re-exit = %s, want used", after.Status)
	}
	if got := f.store.scanCount(); got != before+1 {
		t.Errorf("failed scan must still append exactly one audit row: %d → %d", before, got)
	}
}

func TestEntryAtWrongStation(t *testing.T) {
	f := newFixture(t)
	ticket := f.buyTicket(t, 1, 3)

	before := f.store.scanCount()
	scan, after := f.scan(t, ticket.TicketID, 2, models.ScanEntry)

	if scan.Success {
		t.Error("entry at non-origin station must fail")
	}
	if after.Status != models.TicketActive {
		t.Errorf("status = %s, want active (unchanged)", after.Status)
	}
	if got := f.store.scanCount(); got != before+1 {
		t.Errorf("expected exactly one audit row, got %d new", got-before)
	}
}

func TestExitWithoutEntry(t *testing.T) {
	f := newFixture(t)
	ticket := f.buyTicket(t, 1, 3)

	// used es inalcanzable sin pasar por in_use.
	scan, after := f.scan(t, ticket.TicketID, 3, models.ScanExit)
	if scan.Success {
		t.Error("exit without prior entry must fail")
	}
	if after.Status != models.TicketActive {
		t.Errorf("status = %s, want active", after.Status)
	}
}

func TestEntryAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ticket := f.buyTicket(t, 1, 3)

	f.clock.Advance(25 * time.Hour)

	scan, after := f.scan(t, ticket.TicketID, 1, models.ScanEntry)
	if scan.Success {
		t.Error("entry on expired ticket must fail")
	}
	if after.Status != models.TicketExpired {
		t.Errorf("status = %s, want expired (lazy expiry on entry attempt)", after.Status)
	}
	if scan.Message != "ticket has expired" {
		t.Errorf("message = %q", scan.Message)
	}
}

func TestInUseExpiresOnStatusRead(t *testing.T) {
	f := newFixture(t)
	ticket := f.buyTicket(t, 1, 3)
	f.scan(t, ticket.TicketID, 1, models.ScanEntry)

	f.clock.Advance(25 * time.Hour)

	current, err := f.store.TicketByUUID(context.Background(), ticket.TicketID)
	if err != nil {
		t.Fatal(err)
	}
	f.svc.RefreshExpiry(context.Background(), current)
	if current.Status != models.TicketExpired {
		t.Errorf("status = %s, want expired after lazy check on read", current.Status)
	}
}

func TestNoTransitionOutOfTerminalStates(t *testing.T) {
	f := newFixture(t)
	ticket := f.buyTicket(t, 1, 3)
	f.clock.Advance(25 * time.Hour)
	f.scan(t, ticket.TicketID, 1, models.ScanEntry) // fuerza expired

	for _, kind := range []string{models.ScanEntry, models.ScanExit} {
		for _, station := range []int64{1, 3} {
			scan, after := f.scan(t, ticket.TicketID, station, kind)
			if scan.Success || after.Status != models.TicketExpired {
				t.Errorf("%s at %d on expired ticket: success=%v status=%s", kind, station, scan.Success, after.Status)
			}
		}
	}
}

func TestUnknownTicket(t *testing.T) {
	f := newFixture(t)
	st, _ := f.snap.Station(1)

	_, _, err := f.svc.AttemptScan(context.Background(), f.snap, uuid.New(), st, models.ScanEntry, 99)
	if !errors.Is(err, ErrTicketNotFound) {
		t.Errorf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	o, _ := f.snap.Station(1)
	d, _ := f.snap.Station(3)
	path, _ := f.snap.ShortestPath(1, 3)

	// Usuario 7 sin saldo.
	_, err := f.svc.Purchase(context.Background(), 7, o, d, path, 20)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestOfflineTicket(t *testing.T) {
	f := newFixture(t)
	o, _ := f.snap.Station(1)
	d, _ := f.snap.Station(3)
	path, _ := f.snap.ShortestPath(1, 3)

	ticket, err := f.svc.IssueOffline(context.Background(), 5, o, d, path, 20, 99)
	if err != nil {
		t.Fatalf("IssueOffline: %v", err)
	}
	if ticket.Status != models.TicketUsed {
		t.Errorf("offline ticket status = %s, want used", ticket.Status)
	}
	if got := f.store.scanCount(); got != 2 {
		t.Fatalf("offline ticket must carry exactly 2 synthetic scans, got %d", got)
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, sc := range f.store.scans {
		if !sc.Success {
			t.Errorf("synthetic scan %s must be marked successful", sc.Kind)
		}
	}
	if f.store.scans[0].Kind != models.ScanEntry || f.store.scans[1].Kind != models.ScanExit {
		t.Error("synthetic scans must be an entry/exit pair in order")
	}
}

func TestConcurrentExitsSingleWinner(t *testing.T) {
	f := newFixture(t)
	ticket := f.buyTicket(t, 1, 3)
	f.scan(t, ticket.TicketID, 1, models.ScanEntry)

	const attempts = 10
	st, _ := f.snap.Station(3)
	results := make([]bool, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scan, _, err := f.svc.AttemptScan(context.Background(), f.snap, ticket.TicketID, st, models.ScanExit, 99)
			if err != nil {
				t.Errorf("AttemptScan: %v", err)
				return
			}
			results[i] = scan.Success
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, ok := range results {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("concurrent exits: %d winners, want exactly 1", winners)
	}
	if got := f.store.status(1); got != models.TicketUsed {
		t.Errorf("final status = %s, want used", got)
	}
	// Una fila de auditoría por intento: entry inicial + attempts exits.
	if got := f.store.scanCount(); got != attempts+1 {
		t.Errorf("audit rows = %d, want %d", got, attempts+1)
	}
}

func TestConcurrentEntriesNoLostFootfall(t *testing.T) {
	f := newFixture(t)

	const n = 100
	ids := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		ids[i] = f.buyTicket(t, 1, 3).TicketID
	}

	st, _ := f.snap.Station(1)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if _, _, err := f.svc.AttemptScan(context.Background(), f.snap, id, st, models.ScanEntry, 99); err != nil {
				t.Errorf("AttemptScan: %v", err)
			}
		}(ids[i])
	}
	wg.Wait()

	key := footfallKey(1, f.clock.Now())
	f.footfall.mu.Lock()
	got := f.footfall.entries[key]
	f.footfall.mu.Unlock()
	if got != n {
		t.Errorf("entry_count = %d, want %d (no lost updates)", got, n)
	}
}
