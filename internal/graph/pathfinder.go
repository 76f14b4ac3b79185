package graph

import "errors"

// Errores de búsqueda de rutas. El HTTP layer los mapea a códigos de estado.
var (
	// ErrUnknownStation indica un extremo que no es una estación activa
	// conocida por el snapshot.
	ErrUnknownStation = errors.New("unknown or inactive station")

	// ErrNoRoute indica que no existe camino entre dos estaciones válidas
	// (componentes desconectados de la red).
	ErrNoRoute = errors.New("no route between stations")
)

// ShortestPath retorna la ruta con menos estaciones entre origin y
// destination como secuencia de ids, usando BFS sobre el snapshot.
//
// El orden determinista de vecinos (siguiente, anterior, intercambios en
// orden de registro) hace el desempate reproducible: ante rutas de igual
// largo siempre gana la continuación por la misma línea antes que el salto
// a un intercambio. Mismo snapshot ⇒ misma ruta, siempre.
func (s *Snapshot) ShortestPath(origin, destination int64) ([]int64, error) {
	if _, ok := s.stations[origin]; !ok {
		return nil, ErrUnknownStation
	}
	if _, ok := s.stations[destination]; !ok {
		return nil, ErrUnknownStation
	}
	if origin == destination {
		return []int64{origin}, nil
	}

	// Worklist de prefijos de ruta completamente materializados. La ruta
	// extendida se construye recién al encolar un vecino no visitado, nunca
	// se arrastra un "path actual" entre iteraciones.
	queue := [][]int64{{origin}}
	visited := map[int64]bool{origin: true}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		current := path[len(path)-1]

		if current == destination {
			return path, nil
		}

		for _, neighbor := range s.adjacency[current] {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			extended := make([]int64, len(path)+1)
			copy(extended, path)
			extended[len(path)] = neighbor
			queue = append(queue, extended)
		}
	}

	return nil, ErrNoRoute
}
