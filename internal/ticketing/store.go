package ticketing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/metrogate/internal/models"
)

// SQLStore implementa Store sobre MariaDB y agrega las consultas de listado
// que usan los handlers.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// CreateTicketWithPayment descuenta el saldo y crea el ticket en una sola
// transacción. El UPDATE condicionado al saldo disponible es el guard: cero
// filas afectadas significa saldo insuficiente (o usuario inexistente) y la
// transacción se aborta sin emitir nada.
func (s *SQLStore) CreateTicketWithPayment(ctx context.Context, t *models.Ticket) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE users SET balance = balance - ?
		WHERE id = ? AND balance >= ?
	`, t.Price, t.UserID, t.Price)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInsufficientBalance
	}

	if err := insertTicket(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateOfflineTicket inserta el ticket usado y sus dos scans sintéticos
// atómicamente. Sin descuento de saldo: el pago fue presencial.
func (s *SQLStore) CreateOfflineTicket(ctx context.Context, t *models.Ticket, scans []*models.TicketScan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertTicket(ctx, tx, t); err != nil {
		return err
	}
	for _, scan := range scans {
		scan.TicketRow = t.ID
		if err := insertScan(ctx, tx, scan); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertTicket(ctx context.Context, tx *sql.Tx, t *models.Ticket) error {
	pathJSON, err := json.Marshal(t.Path)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO tickets (ticket_id, user_id, origin_id, destination_id, price, status, purchased_at, entry_time, exit_time, path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.TicketID.String(), t.UserID, t.OriginID, t.DestinationID, t.Price, t.Status, t.PurchasedAt, t.EntryTime, t.ExitTime, pathJSON)
	if err != nil {
		return err
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertScan(ctx context.Context, ex execer, scan *models.TicketScan) error {
	res, err := ex.ExecContext(ctx, `
		INSERT INTO ticket_scans (ticket_row, station_id, kind, scanned_by, scanned_at, success, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, scan.TicketRow, scan.StationID, scan.Kind, scan.ScannedBy, scan.ScannedAt, scan.Success, scan.Message)
	if err != nil {
		return err
	}
	scan.ID, _ = res.LastInsertId()
	return nil
}

const ticketColumns = `id, ticket_id, user_id, origin_id, destination_id, price, status, purchased_at, entry_time, exit_time, path`

func scanTicket(row interface {
	Scan(dest ...interface{}) error
}) (*models.Ticket, error) {
	var t models.Ticket
	var rawID string
	var pathJSON []byte
	err := row.Scan(&t.ID, &rawID, &t.UserID, &t.OriginID, &t.DestinationID, &t.Price,
		&t.Status, &t.PurchasedAt, &t.EntryTime, &t.ExitTime, &pathJSON)
	if err != nil {
		return nil, err
	}
	if t.TicketID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("corrupt ticket_id %q: %w", rawID, err)
	}
	if len(pathJSON) > 0 {
		if err := json.Unmarshal(pathJSON, &t.Path); err != nil {
			return nil, fmt.Errorf("corrupt path for ticket %s: %w", rawID, err)
		}
	}
	return &t, nil
}

// TicketByUUID busca por el identificador público del ticket.
func (s *SQLStore) TicketByUUID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = ?`, id.String())
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	return t, err
}

// TransitionStatus es el compare-and-set del estado. Los timestamps solo se
// escriben cuando vienen; nunca se pisan con NULL.
func (s *SQLStore) TransitionStatus(ctx context.Context, ticketRow int64, from, to string, entryTime, exitTime *time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET status = ?,
		    entry_time = COALESCE(?, entry_time),
		    exit_time = COALESCE(?, exit_time)
		WHERE id = ? AND status = ?
	`, to, entryTime, exitTime, ticketRow, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// AppendScan agrega una fila de auditoría.
func (s *SQLStore) AppendScan(ctx context.Context, scan *models.TicketScan) error {
	return insertScan(ctx, s.db, scan)
}

// TicketsByUser lista los tickets del usuario, más recientes primero.
func (s *SQLStore) TicketsByUser(ctx context.Context, userID int64, limit int) ([]*models.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE user_id = ?
		ORDER BY purchased_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ScansForTicket retorna el historial de scans de un ticket, más recientes
// primero.
func (s *SQLStore) ScansForTicket(ctx context.Context, ticketRow int64) ([]models.TicketScan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts.id, ts.ticket_row, t.ticket_id, ts.station_id, ts.kind, ts.scanned_by, ts.scanned_at, ts.success, ts.message
		FROM ticket_scans ts
		JOIN tickets t ON t.id = ts.ticket_row
		WHERE ts.ticket_row = ?
		ORDER BY ts.scanned_at DESC
	`, ticketRow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScans(rows)
}

// RecentScansByOperator retorna los últimos scans hechos por un operador.
func (s *SQLStore) RecentScansByOperator(ctx context.Context, operatorID int64, limit int) ([]models.TicketScan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts.id, ts.ticket_row, t.ticket_id, ts.station_id, ts.kind, ts.scanned_by, ts.scanned_at, ts.success, ts.message
		FROM ticket_scans ts
		JOIN tickets t ON t.id = ts.ticket_row
		WHERE ts.scanned_by = ?
		ORDER BY ts.scanned_at DESC
		LIMIT ?
	`, operatorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScans(rows)
}

// TodayScanCount cuenta los scans del operador en el día dado.
func (s *SQLStore) TodayScanCount(ctx context.Context, operatorID int64, today time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ticket_scans
		WHERE scanned_by = ? AND DATE(scanned_at) = ?
	`, operatorID, today.Format("2006-01-02")).Scan(&count)
	return count, err
}

func collectScans(rows *sql.Rows) ([]models.TicketScan, error) {
	var out []models.TicketScan
	for rows.Next() {
		var sc models.TicketScan
		var rawID string
		if err := rows.Scan(&sc.ID, &sc.TicketRow, &rawID, &sc.StationID, &sc.Kind, &sc.ScannedBy, &sc.ScannedAt, &sc.Success, &sc.Message); err != nil {
			return nil, err
		}
		if id, err := uuid.Parse(rawID); err == nil {
			sc.TicketID = id
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// GetOrCreateOfflineUser resuelve la cuenta sintética de un pasajero de
// venta presencial, creándola si es la primera vez.
func (s *SQLStore) GetOrCreateOfflineUser(ctx context.Context, passengerName string) (int64, error) {
	username := "offline_" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(passengerName)), " ", "_")

	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, name, password_hash, role, balance)
		VALUES (?, ?, ?, '', 'passenger', 0)
	`, username, username+"@offline.local", passengerName)
	if err != nil {
		// Carrera con otro scanner creando el mismo pasajero.
		if strings.Contains(err.Error(), "Duplicate entry") {
			err2 := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
			return id, err2
		}
		return 0, err
	}
	return res.LastInsertId()
}
