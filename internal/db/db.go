package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

// Connect returns a MariaDB connection using env vars.
func Connect() (*sql.DB, error) {
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASS")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	name := os.Getenv("DB_NAME")
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "3306"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4,utf8", user, pass, host, port, name)
	return sql.Open("mysql", dsn)
}

// EnsureSchema creates required tables if not exist.
func EnsureSchema(db *sql.DB) error {
	if skip := strings.TrimSpace(os.Getenv("DB_SKIP_SCHEMA")); strings.EqualFold(skip, "true") || skip == "1" {
		log.Printf("EnsureSchema: skipped (DB_SKIP_SCHEMA=%q)", skip)
		return nil
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(50) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(100) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role ENUM('passenger','scanner','admin') NOT NULL DEFAULT 'passenger',
			balance BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`); err != nil {
		return err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS metro_lines (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			color VARCHAR(20) NOT NULL DEFAULT 'blue',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			booking_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`); err != nil {
		return err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			code VARCHAR(10) NOT NULL UNIQUE,
			line_id BIGINT NOT NULL,
			position INT NOT NULL,
			interchange BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_stations_line_position (line_id, position),
			FOREIGN KEY (line_id) REFERENCES metro_lines(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`); err != nil {
		return err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS station_connections (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			from_station BIGINT NOT NULL,
			to_station BIGINT NOT NULL,
			kind ENUM('normal','interchange') NOT NULL DEFAULT 'normal',
			UNIQUE KEY uq_connections_pair (from_station, to_station),
			FOREIGN KEY (from_station) REFERENCES stations(id) ON DELETE CASCADE,
			FOREIGN KEY (to_station) REFERENCES stations(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`); err != nil {
		return err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tickets (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			ticket_id CHAR(36) NOT NULL UNIQUE,
			user_id BIGINT NOT NULL,
			origin_id BIGINT NOT NULL,
			destination_id BIGINT NOT NULL,
			price BIGINT NOT NULL,
			status ENUM('active','in_use','used','expired') NOT NULL DEFAULT 'active',
			purchased_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			entry_time TIMESTAMP NULL DEFAULT NULL,
			exit_time TIMESTAMP NULL DEFAULT NULL,
			path JSON NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (origin_id) REFERENCES stations(id),
			FOREIGN KEY (destination_id) REFERENCES stations(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`); err != nil {
		return err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ticket_scans (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			ticket_row BIGINT NOT NULL,
			station_id BIGINT NOT NULL,
			kind ENUM('entry','exit') NOT NULL,
			scanned_by BIGINT NOT NULL,
			scanned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			success BOOLEAN NOT NULL DEFAULT TRUE,
			message VARCHAR(255) NOT NULL DEFAULT '',
			FOREIGN KEY (ticket_row) REFERENCES tickets(id),
			FOREIGN KEY (station_id) REFERENCES stations(id),
			FOREIGN KEY (scanned_by) REFERENCES users(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`); err != nil {
		return err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_footfall (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			station_id BIGINT NOT NULL,
			day DATE NOT NULL,
			entry_count BIGINT NOT NULL DEFAULT 0,
			exit_count BIGINT NOT NULL DEFAULT 0,
			UNIQUE KEY uq_footfall_station_day (station_id, day),
			FOREIGN KEY (station_id) REFERENCES stations(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`); err != nil {
		return err
	}

	if _, err := db.Exec(`
		CREATE INDEX idx_tickets_user_purchased ON tickets(user_id, purchased_at);
	`); err != nil {
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "duplicate") {
			// index already exists, nothing to do
		} else if strings.Contains(errMsg, "permission denied") {
			log.Printf("EnsureSchema: unable to create tickets index (permission denied): %v", err)
		} else {
			return err
		}
	}

	return nil
}
