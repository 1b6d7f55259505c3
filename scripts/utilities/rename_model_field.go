//go:build ignore

package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

// Early imports stored the base model label under a model_name key inside
// the metadata payload. Current rows use base_model throughout. This
// renames the legacy key in place; rows without it are left untouched.
func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	collection := os.Getenv("SINK_COLLECTION")
	if collection == "" {
		collection = "civitai_images"
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	var pending int64
	countQuery := fmt.Sprintf("SELECT count(*) FROM %s WHERE metadata ? 'model_name'", collection)
	if err := db.QueryRow(countQuery).Scan(&pending); err != nil {
		log.Fatalf("failed to count rows: %v", err)
	}
	fmt.Printf("Rows with legacy model_name key: %d\n", pending)
	if pending == 0 {
		fmt.Println("✓ Nothing to migrate")
		return
	}

	update := fmt.Sprintf(`
UPDATE %s
SET metadata = (metadata - 'model_name') || jsonb_build_object('base_model', metadata->'model_name')
WHERE metadata ? 'model_name'`, collection)

	result, err := db.Exec(update)
	if err != nil {
		log.Fatalf("failed to rename metadata key: %v", err)
	}
	renamed, _ := result.RowsAffected()

	fmt.Printf("✓ Renamed model_name to base_model on %d rows\n", renamed)
}
