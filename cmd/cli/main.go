package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	appdb "github.com/yourorg/metrogate/internal/db"
)

func main() {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Println("==== MetroGate CLI ====")
		fmt.Println("1) Health check API")
		fmt.Println("2) Seed network (lines, stations, interchanges)")
		fmt.Println("3) Seed users (admin, scanner, passengers)")
		fmt.Println("4) Exit")
		fmt.Print("Select option: ")
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)
		switch choice {
		case "1":
			doHealthCheck()
		case "2":
			doSeedNetwork()
		case "3":
			doSeedUsers()
		case "4":
			fmt.Println("Bye")
			return
		default:
			fmt.Println("Invalid option")
		}
		fmt.Println()
	}
}

func doHealthCheck() {
	base := os.Getenv("BASE_URL")
	if base == "" {
		base = "http://127.0.0.1:8080"
	}
	url := strings.TrimRight(base, "/") + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		fmt.Println("Health: ERROR:", err)
		return
	}
	defer resp.Body.Close()
	fmt.Println("Health status:", resp.Status)
}

func openDB() *sql.DB {
	db, err := appdb.Connect()
	if err != nil {
		log.Println("DB connect error:", err)
		return nil
	}
	if err := appdb.EnsureSchema(db); err != nil {
		log.Println("Ensure schema error:", err)
		db.Close()
		return nil
	}
	return db
}

type seedStation struct {
	name        string
	code        string
	position    int
	interchange bool
}

// doSeedNetwork carga una red de tres líneas con cuatro interchanges.
// Las estaciones de interchange existen una vez por línea, con código
// sufijado, y se conectan con pares de conexiones en ambos sentidos.
func doSeedNetwork() {
	db := openDB()
	if db == nil {
		return
	}
	defer db.Close()

	var existing int
	if err := db.QueryRow("SELECT COUNT(*) FROM metro_lines").Scan(&existing); err != nil {
		log.Println("Seed: count error:", err)
		return
	}
	if existing > 0 {
		fmt.Println("Seed: network already populated, skipping")
		return
	}

	blue := []seedStation{
		{"Dwarka", "DWK", 0, false},
		{"Janakpuri", "JPK", 1, false},
		{"Rajouri Garden", "RGD", 2, true}, // Interchange con Pink
		{"Karol Bagh", "KBG", 3, false},
		{"Rajiv Chowk", "RCK", 4, true}, // Interchange con Yellow
		{"Mandi House", "MHS", 5, false},
		{"Pragati Maidan", "PMD", 6, false},
		{"Akshardham", "AKD", 7, false},
		{"Mayur Vihar", "MVR", 8, false},
		{"Noida City Centre", "NCC", 9, false},
	}
	yellow := []seedStation{
		{"Samaypur Badli", "SBD", 0, false},
		{"Rohini", "RHN", 1, false},
		{"Pitampura", "PTM", 2, false},
		{"Model Town", "MTN", 3, false},
		{"Azadpur", "AZP", 4, true}, // Interchange con Pink
		{"Rajiv Chowk", "RCK", 5, true},
		{"Patel Chowk", "PCK", 6, false},
		{"Central Secretariat", "CST", 7, false},
		{"INA", "INA", 8, true}, // Interchange con Pink
		{"AIIMS", "AMS", 9, false},
		{"Green Park", "GPK", 10, false},
		{"Hauz Khas", "HKS", 11, false},
		{"Malviya Nagar", "MVN", 12, false},
		{"Saket", "SKT", 13, false},
		{"Qutub Minar", "QMR", 14, false},
		{"HUDA City Centre", "HCC", 15, false},
	}
	pink := []seedStation{
		{"Majlis Park", "MPK", 0, false},
		{"Azadpur", "AZP", 1, true},
		{"Shalimar Bagh", "SBG", 2, false},
		{"Netaji Subhash Place", "NSP", 3, false},
		{"Punjabi Bagh", "PBG", 4, false},
		{"Rajouri Garden", "RGD", 5, true},
		{"Mayapuri", "MYP", 6, false},
		{"Naraina", "NRN", 7, false},
		{"Delhi Cantt", "DCT", 8, false},
		{"Durgabai Deshmukh", "DDD", 9, false},
		{"Sir Vishweshwaraiah", "SVS", 10, false},
		{"Bhikaji Cama", "BCM", 11, false},
		{"Sarojini Nagar", "SJN", 12, false},
		{"INA", "INA", 13, true},
		{"South Extension", "SEX", 14, false},
		{"Lajpat Nagar", "LPN", 15, false},
	}

	blueIDs, err := seedLine(db, "Blue", "#0000FF", "B", blue)
	if err != nil {
		log.Println("Seed: blue line error:", err)
		return
	}
	yellowIDs, err := seedLine(db, "Yellow", "#FFD700", "Y", yellow)
	if err != nil {
		log.Println("Seed: yellow line error:", err)
		return
	}
	pinkIDs, err := seedLine(db, "Pink", "#FFC0CB", "P", pink)
	if err != nil {
		log.Println("Seed: pink line error:", err)
		return
	}

	// Interchanges: par de conexiones, una por sentido
	pairs := [][2]int64{
		{blueIDs["RCK_B"], yellowIDs["RCK_Y"]},
		{blueIDs["RGD_B"], pinkIDs["RGD_P"]},
		{yellowIDs["AZP_Y"], pinkIDs["AZP_P"]},
		{yellowIDs["INA_Y"], pinkIDs["INA_P"]},
	}
	for _, p := range pairs {
		for _, dir := range [][2]int64{{p[0], p[1]}, {p[1], p[0]}} {
			_, err := db.Exec(
				"INSERT INTO station_connections (from_station, to_station, kind) VALUES (?, ?, 'interchange')",
				dir[0], dir[1],
			)
			if err != nil {
				log.Println("Seed: connection error:", err)
				return
			}
		}
	}

	fmt.Printf("Seed: network created (%d + %d + %d stations, %d interchange pairs)\n",
		len(blue), len(yellow), len(pink), len(pairs))
}

func seedLine(db *sql.DB, name, color, suffix string, stations []seedStation) (map[string]int64, error) {
	res, err := db.Exec(
		"INSERT INTO metro_lines (name, color, active, booking_enabled) VALUES (?, ?, 1, 1)",
		name, color,
	)
	if err != nil {
		return nil, err
	}
	lineID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	ids := make(map[string]int64, len(stations))
	for _, st := range stations {
		code := st.code + "_" + suffix
		res, err := db.Exec(
			"INSERT INTO stations (name, code, line_id, position, interchange, active) VALUES (?, ?, ?, ?, ?, 1)",
			fmt.Sprintf("%s (%s)", st.name, name), code, lineID, st.position, st.interchange,
		)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids[code] = id
	}
	return ids, nil
}

func doSeedUsers() {
	db := openDB()
	if db == nil {
		return
	}
	defer db.Close()

	users := []struct {
		username, email, name, password, role string
		balance                               int64
	}{
		{"admin", "admin@metro.com", "Admin", "admin123", "admin", 0},
		{"scanner1", "scanner@metro.com", "Scanner One", "scanner123", "scanner", 0},
		{"passenger1", "passenger1@example.com", "Passenger One", "pass123", "passenger", 500},
		{"passenger2", "passenger2@example.com", "Passenger Two", "pass123", "passenger", 1000},
	}

	for _, u := range users {
		var exists int
		_ = db.QueryRow("SELECT 1 FROM users WHERE username = ?", u.username).Scan(&exists)
		if exists == 1 {
			fmt.Printf("Seed: user %q already exists\n", u.username)
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			fmt.Println("Seed: bcrypt error:", err)
			return
		}
		_, err = db.Exec(
			"INSERT INTO users (username, email, name, password_hash, role, balance) VALUES (?,?,?,?,?,?)",
			u.username, u.email, u.name, string(hash), u.role, u.balance,
		)
		if err != nil {
			fmt.Println("Seed: insert error:", err)
			return
		}
		fmt.Printf("Seed: created %s %q (password %q)\n", u.role, u.username, u.password)
	}
}
