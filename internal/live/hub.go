package live

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/yourorg/metrogate/internal/models"
)

// Hub maneja las conexiones WebSocket de los paneles de monitoreo en vivo
// (torniquetes, pantallas de estación). Cada scan validado se publica a
// todos los clientes conectados.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

func NewHub() *Hub {
	h := &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		clients:    make(map[*websocket.Conn]bool),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("🔌 Panel conectado. Total clientes: %d", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("🔌 Panel desconectado. Total clientes: %d", n)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Printf("Error enviando evento al panel: %v", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// HandleWebSocket maneja una conexión WebSocket de Fiber. Los paneles solo
// escuchan; los mensajes entrantes se descartan.
func (h *Hub) HandleWebSocket(conn *websocket.Conn) {
	h.register <- conn
	defer func() {
		h.unregister <- conn
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ScanEvent es el evento que reciben los paneles por cada scan registrado.
type ScanEvent struct {
	Type      string    `json:"type"`
	TicketID  string    `json:"ticket_id"`
	StationID int64     `json:"station_id"`
	Station   string    `json:"station,omitempty"`
	Kind      string    `json:"kind"`
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}

// PublishScan serializa y difunde un scan. Si el canal está lleno el evento
// se descarta: el feed en vivo nunca debe bloquear el torniquete.
func (h *Hub) PublishScan(scan models.TicketScan, stationName string) {
	if h == nil || h.clientCount() == 0 {
		return
	}

	evt := ScanEvent{
		Type:      "scan",
		TicketID:  scan.TicketID.String(),
		StationID: scan.StationID,
		Station:   stationName,
		Kind:      scan.Kind,
		Success:   scan.Success,
		Message:   scan.Message,
		ScannedAt: scan.ScannedAt,
	}

	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("Error al serializar evento de scan: %v", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		// Canal lleno, saltar evento
	}
}
