package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"

	appdb "github.com/yourorg/metrogate/internal/db"
	"github.com/yourorg/metrogate/internal/handlers"
	"github.com/yourorg/metrogate/internal/routes"
)

func main() {
	_ = godotenv.Load()

	app := fiber.New()
	app.Use(logger.New())

	// ============================================================================
	// DB CONNECTION
	// ============================================================================
	dbReady := make(chan struct{})

	go func() {
		for {
			db, err := appdb.Connect()
			if err != nil {
				log.Printf("db connect error: %v (retrying in 5s)", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if err := appdb.EnsureSchema(db); err != nil {
				log.Printf("ensure schema error: %v (retrying in 5s)", err)
				time.Sleep(5 * time.Second)
				continue
			}
			handlers.Setup(db)
			metroStore := routes.Register(app, db)
			close(dbReady)
			log.Printf("✅ Database ready and routes registered")

			// Precalentar el snapshot del grafo: el primer pasajero no
			// debería pagar el costo de la carga.
			metroStore.WarmSnapshot()
			return
		}
	}()

	// Wait briefly for DB to be ready; el servidor igual arranca y sigue
	// reintentando en el fondo si la base aún no responde.
	select {
	case <-dbReady:
	case <-time.After(5 * time.Second):
		log.Println("⚠️ DB aún no disponible, el servidor arranca sin rutas registradas")
	}

	// ============================================================================
	// GRACEFUL SHUTDOWN
	// ============================================================================
	// Capturar señales de terminación (Ctrl+C, kill, etc.)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("\n🛑 Señal de terminación recibida, cerrando servidor...")

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️  Error cerrando servidor: %v", err)
		}

		log.Println("✅ Servidor cerrado correctamente")
		os.Exit(0)
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("🚀 Servidor escuchando en :%s", port)
	log.Println("📍 Endpoints disponibles:")
	log.Println("   ═══ RED DE METRO ═══")
	log.Println("   GET  /api/lines                 - Líneas y su estado")
	log.Println("   GET  /api/stations              - Estaciones de la red")
	log.Println("   GET  /api/route?from=&to=       - Ruta más corta + tarifa")
	log.Println("")
	log.Println("   ═══ TICKETS ═══")
	log.Println("   POST /api/tickets               - Comprar ticket")
	log.Println("   GET  /api/tickets               - Mis tickets")
	log.Println("   POST /api/tickets/offline       - Venta presencial (scanner)")
	log.Println("")
	log.Println("   ═══ TORNIQUETES ═══")
	log.Println("   POST /api/scan                  - Validar entrada/salida")
	log.Println("   GET  /ws/scans                  - Feed en vivo de scans")
	log.Println("")
	log.Println("💡 Presiona Ctrl+C para detener")

	if err := app.Listen(":" + port); err != nil {
		log.Fatal(err)
	}
}
