/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the reagent bank server. Handles configuration,
  dependency injection, and graceful shutdown. The demo world it seeds stands
  in for the game host: a couple of connected players with stocked bags and a
  small item catalog, enough to exercise every endpoint.

STARTUP SEQUENCE:
  1. Load REAGENT_BANK_* environment configuration
  2. Parse command-line flag overrides
  3. Initialize SQLite store
  4. Seed the demo world and catalog
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides REAGENT_BANK_PORT)
  -db      SQLite database path (overrides REAGENT_BANK_DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/reagentbank.db"

  # Run with in-memory database and auditing on
  REAGENT_BANK_AUDIT_ENABLED=true ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thornwood/reagent-bank/api"
	"github.com/thornwood/reagent-bank/bank"
	"github.com/thornwood/reagent-bank/config"
	"github.com/thornwood/reagent-bank/store/sqlite"
	"github.com/thornwood/reagent-bank/world"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flag overrides
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Demo world standing in for the game host
	catalog, w := seedWorld()

	svc := bank.NewService(store, w, catalog, cfg.Bank())
	handler := api.NewHandler(svc)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Reagent bank listening on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// seedWorld builds a small catalog and two connected demo players so the API
// is usable out of the box.
func seedWorld() (*world.Catalog, *world.World) {
	const herbFamily = 0x200

	catalog := world.NewCatalog(
		bank.ItemInfo{ID: 2589, Name: "Linen Cloth", Class: bank.ClassTradeGoods, Subclass: uint32(bank.CategoryCloth), MaxStack: 20},
		bank.ItemInfo{ID: 2770, Name: "Copper Ore", Class: bank.ClassTradeGoods, Subclass: uint32(bank.CategoryMetalStone), MaxStack: 20},
		bank.ItemInfo{ID: 765, Name: "Silverleaf", Class: bank.ClassTradeGoods, Subclass: uint32(bank.CategoryHerb), MaxStack: 20, BagFamilyMask: herbFamily},
		bank.ItemInfo{ID: 774, Name: "Malachite", Class: bank.ClassGem, Subclass: 0, MaxStack: 20},
		bank.ItemInfo{ID: 7075, Name: "Core of Earth", Class: bank.ClassTradeGoods, Subclass: uint32(bank.CategoryElemental), MaxStack: 10},
	)

	w := world.New()
	stock := func(bags *world.Bags, item uint32, count uint64) {
		if err := bags.Add(item, count); err != nil {
			log.Fatalf("Failed to seed demo world with item %d: %v", item, err)
		}
	}

	bags1 := world.NewBags(catalog,
		world.BagLayout{Slots: 16},
		world.BagLayout{Slots: 12, FamilyMask: herbFamily},
	)
	stock(bags1, 2589, 45)
	stock(bags1, 765, 30)
	stock(bags1, 774, 8)
	w.Join(world.NewPlayer(1, 100, 1001, bags1))

	bags2 := world.NewBags(catalog, world.BagLayout{Slots: 16})
	stock(bags2, 2770, 60)
	stock(bags2, 7075, 5)
	w.Join(world.NewPlayer(2, 100, 1002, bags2))

	return catalog, w
}
