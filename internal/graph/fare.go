package graph

import (
	"os"
	"strconv"
)

// Tarifas por defecto (unidades de moneda enteras).
const (
	DefaultBaseFare       = 10
	DefaultPerStationFare = 5
)

// FareConfig define la tarifa base y el cargo por estación cruzada.
type FareConfig struct {
	BaseFare       int64 `json:"base_fare"`
	PerStationFare int64 `json:"per_station_fare"`
}

// FareConfigFromEnv lee TICKET_BASE_FARE y TICKET_PER_STATION_FARE, con
// defaults 10 y 5.
func FareConfigFromEnv() FareConfig {
	cfg := FareConfig{BaseFare: DefaultBaseFare, PerStationFare: DefaultPerStationFare}
	if v := os.Getenv("TICKET_BASE_FARE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.BaseFare = n
		}
	}
	if v := os.Getenv("TICKET_PER_STATION_FARE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.PerStationFare = n
		}
	}
	return cfg
}

// Fare calcula el precio de una ruta: base + por-estación × estaciones
// cruzadas. Cero para rutas de menos de dos estaciones. Función pura; el
// precio se calcula una sola vez al comprar y queda inmutable en el ticket.
func (c FareConfig) Fare(path []int64) int64 {
	if len(path) < 2 {
		return 0
	}
	crossed := int64(len(path) - 1)
	return c.BaseFare + crossed*c.PerStationFare
}
