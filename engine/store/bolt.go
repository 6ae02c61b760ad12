package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"aegis/engine/models"
)

const (
	bucketFloors       = "floors"
	bucketImageRecords = "image_records"
	bucketRoutes       = "routes"
	bucketSettings     = "settings"

	settingsKey = "singleton"
)

// Bolt is a single-process, single-writer local store, keyed one bucket
// per collection with JSON-encoded values, matching the reference
// BaselineRecord/LedgerEntry layout's "bucket per collection, key by id"
// convention.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database at path and ensures every
// collection bucket exists.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}
	b := &Bolt{db: db}
	if err := b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketFloors, bucketImageRecords, bucketRoutes, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the underlying database file.
func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) GetFloor(_ context.Context, floorID string) (*models.Floor, error) {
	var f models.Floor
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketFloors)).Get([]byte(floorID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &f)
	})
	if err != nil {
		return nil, fmt.Errorf("store: get floor %q: %w", floorID, err)
	}
	if !found {
		return nil, fmt.Errorf("store: floor %q not found", floorID)
	}
	return &f, nil
}

func (b *Bolt) SaveFloor(_ context.Context, f *models.Floor) error {
	f.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("store: marshal floor: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketFloors)).Put([]byte(f.ID), data)
	})
}

func (b *Bolt) ActiveFloorIDs(_ context.Context) ([]string, error) {
	var ids []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketFloors)).ForEach(func(k, v []byte) error {
			var f models.Floor
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			if f.Active() {
				ids = append(ids, f.ID)
			}
			return nil
		})
	})
	return ids, err
}

func (b *Bolt) SaveImageRecord(_ context.Context, rec *models.ImageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal image record: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketImageRecords)).Put([]byte(rec.ID), data)
	})
}

func (b *Bolt) ImageRecords(_ context.Context) ([]models.ImageRecord, error) {
	var out []models.ImageRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketImageRecords)).ForEach(func(_, v []byte) error {
			var rec models.ImageRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

func (b *Bolt) SaveRouteDocument(_ context.Context, doc *models.RouteDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: marshal route document: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketRoutes)).Put([]byte(doc.ID), data)
	})
}

func (b *Bolt) RouteDocuments(_ context.Context) ([]models.RouteDocument, error) {
	var out []models.RouteDocument
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketRoutes)).ForEach(func(_, v []byte) error {
			var doc models.RouteDocument
			if err := json.Unmarshal(v, &doc); err != nil {
				return err
			}
			out = append(out, doc)
			return nil
		})
	})
	return out, err
}

func (b *Bolt) GetSettings(_ context.Context) (models.Settings, error) {
	var s models.Settings
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketSettings)).Get([]byte(settingsKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &s)
	})
	if err != nil {
		return models.Settings{}, fmt.Errorf("store: get settings: %w", err)
	}
	if !found {
		return models.DefaultSettings(), nil
	}
	return s, nil
}

func (b *Bolt) SaveSettings(_ context.Context, s models.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("store: marshal settings: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSettings)).Put([]byte(settingsKey), data)
	})
}
