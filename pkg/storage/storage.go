package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/grexie/estorage/pkg/storage/interfaces"
	"github.com/grexie/estorage/pkg/storage/memory"
	"github.com/grexie/estorage/pkg/storage/mongo"
)

func NewStorage(ctx context.Context) (interfaces.IStorageBackend, error) {
	backend := strings.TrimSpace(os.Getenv("ESTORAGE_STORAGE_BACKEND"))
	if backend == "" {
		return nil, fmt.Errorf("storage backend not configured, set environment variable ESTORAGE_STORAGE_BACKEND to mongo or memory")
	}

	switch backend {
	case "mongo":
		return mongo.NewMongoStorageBackend(ctx)
	case "memory":
		return memory.NewMemoryStorageBackend()
	default:
		return nil, fmt.Errorf("invalid storage backend: %s, set environment variable ESTORAGE_STORAGE_BACKEND to mongo or memory", backend)
	}
}
