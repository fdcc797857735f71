package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rl1809/stockledger/internal/adapter/storage"
	"github.com/rl1809/stockledger/internal/core/domain"
	"github.com/rl1809/stockledger/internal/core/service"
	"github.com/rl1809/stockledger/internal/port"
)

type store interface {
	port.DatabaseRepository
	Migrate(ctx context.Context) error
}

func main() {
	initialStock := flag.Int("stock", 20, "initial quantity of the item")
	totalRequests := flag.Int("requests", 50, "number of concurrent one-unit checkouts")
	mysqlDSN := flag.String("mysql", "", "MySQL DSN; an embedded SQLite file is used when empty")
	flag.Parse()

	ctx := context.Background()

	db, st, cleanup, err := openStore(ctx, *mysqlDSN)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer cleanup()

	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	defer db.Close()

	catalog, err := service.NewCatalogService(st)
	if err != nil {
		log.Fatalf("failed to create catalog: %v", err)
	}
	movements := service.NewMovementService(catalog, st)
	defer movements.Close()
	reports := service.NewReportService(catalog, st, st)

	operator := domain.Actor{ID: 1, Username: "stress-operator", Role: domain.RoleManager}
	item, err := catalog.Create(ctx, domain.ItemSpec{
		Name:          fmt.Sprintf("stress item %d", time.Now().UnixNano()),
		QuantityTotal: *initialStock,
	}, operator)
	if err != nil {
		log.Fatalf("failed to create item: %v", err)
	}

	// Counters
	var successCount atomic.Int32
	var refusedCount atomic.Int32
	var errorCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			_, err := movements.Checkout(ctx, service.MovementRequest{
				ItemRef:  item.Code,
				Quantity: 1,
				Actor:    domain.Actor{ID: int64(userID + 100), Username: fmt.Sprintf("user-%d", userID)},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				refusedCount.Add(1)
			default:
				errorCount.Add(1)
				log.Printf("user-%d: %v", userID, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := int(successCount.Load())
	refused := int(refusedCount.Load())
	expectedSuccess := min(*initialStock, *totalRequests)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Item:             %s\n", item.Code)
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Refused:          %d\n", refused)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	failed := false
	if success == expectedSuccess && refused == *totalRequests-expectedSuccess {
		fmt.Printf("PASS: Exactly %d checkouts succeeded, %d refused\n", success, refused)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d refused, got %d/%d\n",
			expectedSuccess, *totalRequests-expectedSuccess, success, refused)
		failed = true
	}

	// Verify the ledger replays to the stored availability
	rec, err := reports.Reconcile(ctx, item.Code)
	if err != nil {
		log.Fatalf("failed to reconcile: %v", err)
	}
	fmt.Printf("Final Available:  %d\n", rec.QuantityAvailable)
	fmt.Printf("Ledger Entries:   %d\n", rec.Entries)

	if rec.Consistent && rec.QuantityAvailable == *initialStock-success && rec.Entries == success {
		fmt.Println("PASS: Ledger replay matches stored availability")
	} else {
		fmt.Printf("FAIL: Replayed %d, stored %d, %d entries\n", rec.ReplayedAvailable, rec.QuantityAvailable, rec.Entries)
		failed = true
	}

	if failed {
		os.Exit(1)
	}
}

func openStore(ctx context.Context, mysqlDSN string) (*sql.DB, store, func(), error) {
	if mysqlDSN != "" {
		db, err := storage.OpenMySQL(ctx, mysqlDSN, 50)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, storage.NewMySQLAdapter(db), func() {}, nil
	}

	dir, err := os.MkdirTemp("", "stockledger-stress-*")
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := storage.OpenSQLite(ctx, filepath.Join(dir, "stress.db"), 1)
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, nil, err
	}
	return db, storage.NewSQLiteAdapter(db), func() { os.RemoveAll(dir) }, nil
}
