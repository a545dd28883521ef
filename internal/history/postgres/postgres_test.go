package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/renewd/internal/history"
)

func TestPostgresSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Start PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	sink, err := New(connStr)
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	attempt := history.Event{
		Type:       history.EventAttempt,
		OccurredAt: time.Now().UTC(),
		Principal:  "alice@EXAMPLE.ORG",
		Cache:      "/tmp/renewd_cc_1000",
		Outcome:    "success",
	}
	if err := sink.Send(ctx, attempt); err != nil {
		t.Fatalf("Failed to send attempt event: %v", err)
	}

	exit := history.Event{
		Type:       history.EventChildExit,
		OccurredAt: time.Now().UTC(),
		Principal:  "alice@EXAMPLE.ORG",
		Cache:      "/tmp/renewd_cc_1000",
		Outcome:    "clean",
		Detail:     "exit status 0",
	}
	if err := sink.Send(ctx, exit); err != nil {
		t.Fatalf("Failed to send child exit event: %v", err)
	}

	// Verify events were stored
	rows, err := sink.db.QueryContext(ctx, "SELECT COUNT(*) FROM renewal_history WHERE principal = $1", attempt.Principal)
	if err != nil {
		t.Fatalf("Failed to query renewal_history: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			t.Fatalf("Failed to scan count: %v", err)
		}
	}

	if count != 2 {
		t.Errorf("Expected 2 events in history, got %d", count)
	}
}

func TestPostgresSink_EmptyDSN(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("Expected error for empty DSN")
	}
}
