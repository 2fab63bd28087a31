//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/imaging"
	"github.com/kozaktomas/face-registry/internal/store"
)

func setupTestContainer(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
	}

	backend, err := Open(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open backend: %v", err)
	}

	repo := backend.(*Repository)
	cleanup := func() {
		repo.Close()
		container.Terminate(ctx)
	}
	return repo, cleanup
}

func testImage(t *testing.T) imaging.EncodedImage {
	t.Helper()
	img, err := imaging.NewEncoder(90).Encode(image.NewRGBA(image.Rect(0, 0, 12, 9)))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return img
}

func TestRepository_SubmitAndList(t *testing.T) {
	repo, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	before := time.Now().UTC().Truncate(time.Millisecond)
	img := testImage(t)

	ack, err := repo.Submit(ctx, store.FaceRecord{Label: "Alice", Image: img, CapturedAt: time.Now()})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ack.ID == "" {
		t.Error("expected non-empty ack id")
	}

	records, err := repo.List(ctx, store.ListOptions{Limit: 10, IncludeImages: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	got := records[0]
	if got.Label != "Alice" {
		t.Errorf("expected label Alice, got %s", got.Label)
	}
	if got.CapturedAt.Before(before) || got.CapturedAt.After(time.Now().Add(time.Second)) {
		t.Errorf("timestamp %v outside test window", got.CapturedAt)
	}

	parsed, err := imaging.ParseDataURL(got.ImageData)
	if err != nil {
		t.Fatalf("stored image is not a data URL: %v", err)
	}
	if string(parsed.Data) != string(img.Data) {
		t.Error("stored image differs from submitted image")
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected count 1, got %d", n)
	}
}

func TestRepository_MigrateIsIdempotent(t *testing.T) {
	repo, cleanup := setupTestContainer(t)
	defer cleanup()

	if err := repo.pool.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestRepository_RejectsIncompleteRecord(t *testing.T) {
	repo, cleanup := setupTestContainer(t)
	defer cleanup()

	_, err := repo.Submit(context.Background(), store.FaceRecord{Label: "Bob", CapturedAt: time.Now()})
	if !errors.Is(err, store.ErrIncompleteRecord) {
		t.Errorf("expected ErrIncompleteRecord, got %v", err)
	}
}
