package ticketing

import (
	"sync"

	"github.com/google/uuid"
)

// lockTable serializa las transiciones por identidad de ticket. Locks en
// franjas fijas: dos tickets pueden compartir franja (contención espuria
// ocasional) pero nunca hay mapa que crezca ni entradas que limpiar.
type lockTable struct {
	shards [64]sync.Mutex
}

func (l *lockTable) forTicket(id uuid.UUID) *sync.Mutex {
	return &l.shards[int(id[0])%len(l.shards)]
}
