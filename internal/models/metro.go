package models

import "time"

// LineDTO representa una línea de metro en respuestas de la API.
type LineDTO struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	Active         bool   `json:"active"`
	BookingEnabled bool   `json:"booking_enabled"`
	StationCount   int    `json:"station_count,omitempty"`
}

// StationDTO representa una estación en respuestas de la API.
type StationDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	LineID      int64  `json:"line_id"`
	Position    int    `json:"position"`
	Interchange bool   `json:"interchange"`
}

// RouteResponse es el resultado de resolver una ruta entre dos estaciones.
type RouteResponse struct {
	Path []StationDTO `json:"path"`
	Hops int          `json:"hops"`
	Fare int64        `json:"fare"`
}

// FootfallRow es el contador diario de entradas/salidas de una estación.
// El total siempre se deriva, nunca se almacena.
type FootfallRow struct {
	StationID   int64     `json:"station_id"`
	StationName string    `json:"station_name"`
	Date        time.Time `json:"date"`
	EntryCount  int64     `json:"entry_count"`
	ExitCount   int64     `json:"exit_count"`
	Total       int64     `json:"total"`
}

// StationFootfallTotal agrega el footfall de una estación en un rango.
type StationFootfallTotal struct {
	StationID   int64  `json:"station_id"`
	StationName string `json:"station_name"`
	Entries     int64  `json:"entries"`
	Exits       int64  `json:"exits"`
	Total       int64  `json:"total"`
}
