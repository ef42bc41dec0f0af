package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"arbor/internal/config"
	wikiSvc "arbor/internal/domain/services/wiki"
	"arbor/internal/repository/postgres"
	postgresWiki "arbor/internal/repository/postgres/wiki"
	serviceWiki "arbor/internal/service/wiki"
)

// seedOperatorID is the synthetic operator recorded on seeded rows.
const seedOperatorID = "00000000-0000-0000-0000-000000000001"

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed content")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("🚫 BLOCKED: Cannot run --drop-tables in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *schemaOnly {
		log.Printf("🏗️  Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else {
		log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	log.Println("📋 Ensuring database schema is up to date...")
	if err := postgresWiki.EnsureSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	nodeRepo := postgresWiki.NewNodeRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)
	nodeService := serviceWiki.NewNodeService(nodeRepo, txManager, serviceWiki.RealClock{}, logger)

	log.Println("📝 Seeding wiki structure...")
	if err := seedTree(ctx, nodeService); err != nil {
		log.Fatalf("Failed to seed: %v", err)
	}

	log.Println("🎉 Seeding complete!")
}

// seedTree builds a small sample hierarchy: a public handbook area and a
// restricted HR area whose folder carries department codes.
func seedTree(ctx context.Context, svc wikiSvc.NodeService) error {
	handbook, err := svc.CreateFolder(ctx, &wikiSvc.CreateFolderRequest{
		Name:       "Handbook",
		OperatorID: seedOperatorID,
	})
	if err != nil {
		return err
	}
	log.Printf("✅ Created folder: Handbook (ID: %s)", handbook.ID)

	restricted := false
	hr, err := svc.CreateFolder(ctx, &wikiSvc.CreateFolderRequest{
		Name:          "HR",
		IsPublic:      &restricted,
		DepartmentIDs: []string{"D-HR"},
		OperatorID:    seedOperatorID,
	})
	if err != nil {
		return err
	}
	log.Printf("✅ Created folder: HR (ID: %s, restricted)", hr.ID)

	files := []struct {
		name, title, body string
		parentID          *string
	}{
		{"getting-started", "Getting Started", "<h1>Welcome</h1><p>Start here.</p>", &handbook.ID},
		{"code-of-conduct", "Code of Conduct", "<p>Be kind.</p>", &handbook.ID},
		{"leave-policy", "Leave Policy", "<p>Annual leave accrues monthly.</p>", &hr.ID},
	}
	for _, f := range files {
		file, err := svc.CreateFile(ctx, &wikiSvc.CreateFileRequest{
			Name:       f.name,
			ParentID:   f.parentID,
			Title:      f.title,
			Body:       f.body,
			OperatorID: seedOperatorID,
		})
		if err != nil {
			return err
		}
		log.Printf("✅ Created file: %s (ID: %s)", f.name, file.ID)
	}

	return nil
}

// dropAllTables removes every wiki table, children first.
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	for _, table := range []string{
		tables.DismissedLogs,
		tables.PermissionLogs,
		tables.Closure,
		tables.Nodes,
	} {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return err
		}
	}
	return nil
}
