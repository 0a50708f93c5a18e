// Package storage selects and decorates the persistence backend.
package storage

import (
	"context"
	"fmt"
	"strings"

	"todo-app/domain"
	"todo-app/storage/memory"
	"todo-app/storage/mongostore"
	"todo-app/storage/tables"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongodb"
	BackendTables = "azure-tables"

	memoryScheme = "memory://"
)

// Options names the store and its collections.
type Options struct {
	ConnectionString string
	Database         string
	UsersTable       string
	TasksTable       string
}

// Backend reports which backend a connection string selects.
func Backend(connStr string) string {
	switch {
	case strings.HasPrefix(connStr, memoryScheme):
		return BackendMemory
	case strings.HasPrefix(connStr, "mongodb://"), strings.HasPrefix(connStr, "mongodb+srv://"):
		return BackendMongo
	default:
		return BackendTables
	}
}

// Open connects to the backend selected by opts.ConnectionString and makes
// sure its tables, collections and indexes exist.
func Open(ctx context.Context, opts Options) (domain.Store, error) {
	if opts.ConnectionString == "" {
		return nil, fmt.Errorf("storage: empty connection string")
	}
	switch Backend(opts.ConnectionString) {
	case BackendMemory:
		return memory.New(), nil
	case BackendMongo:
		st, err := mongostore.Connect(ctx, opts.ConnectionString, opts.Database, opts.UsersTable, opts.TasksTable)
		if err != nil {
			return nil, fmt.Errorf("storage: connect mongodb: %w", err)
		}
		if err := st.Init(ctx); err != nil {
			_ = st.Close(context.Background())
			return nil, fmt.Errorf("storage: init mongodb: %w", err)
		}
		return st, nil
	default:
		st, err := tables.New(opts.ConnectionString, opts.UsersTable, opts.TasksTable)
		if err != nil {
			return nil, fmt.Errorf("storage: azure tables client: %w", err)
		}
		if err := st.Init(ctx); err != nil {
			return nil, fmt.Errorf("storage: init azure tables: %w", err)
		}
		return st, nil
	}
}
