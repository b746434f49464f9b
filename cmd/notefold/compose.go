package main

import (
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"github.com/notefold/notefold/internal/config"
	"github.com/notefold/notefold/internal/db"
	"github.com/notefold/notefold/internal/kv"
	"github.com/notefold/notefold/internal/organizer"
	"github.com/notefold/notefold/internal/store"
)

// syncAreaFile is the snapshot document the platform sync agent replicates
// between devices.
const syncAreaFile = "notefold-sync.json"

// newService wires the organizer with its record store and both key-value
// areas. The caller owns closing the returned DB.
func newService(cfg *config.Config) (*organizer.Service, *kv.FileArea, *sqlx.DB, error) {
	database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrate(database, cfg.DB.Driver); err != nil {
		_ = database.Close()
		return nil, nil, nil, err
	}

	syncArea := kv.NewFileArea(filepath.Join(cfg.Sync.Dir, syncAreaFile), cfg.Sync.QuotaBytes)
	localArea := kv.NewFileArea(filepath.Join(cfg.DataDir, "notefold-local.json"), 0)

	svc := organizer.New(organizer.Options{
		Records:   store.New(database),
		SyncArea:  syncArea,
		LocalArea: localArea,
	})
	return svc, syncArea, database, nil
}
