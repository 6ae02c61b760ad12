// Package store defines the local/remote persistence ports the pipeline
// consumes (floors, image records, route documents, settings) and a
// go.etcd.io/bbolt backed implementation, grounded on
// IAmSoThirsty-Project-AI/octoreflex's internal/storage bucket-per-
// collection layout.
package store

import (
	"context"

	"aegis/engine/models"
)

// FloorStore reads/writes the floor document — the graph, cameras,
// screens and exits a cycle operates on.
type FloorStore interface {
	GetFloor(ctx context.Context, floorID string) (*models.Floor, error)
	SaveFloor(ctx context.Context, f *models.Floor) error
	ActiveFloorIDs(ctx context.Context) ([]string, error)
}

// ImageRecordStore persists per-capture AI fusion records (spec §4.6).
type ImageRecordStore interface {
	SaveImageRecord(ctx context.Context, rec *models.ImageRecord) error
	ImageRecords(ctx context.Context) ([]models.ImageRecord, error)
}

// RouteStore persists the append-only per-cycle route documents
// (spec §4.8 step 9).
type RouteStore interface {
	SaveRouteDocument(ctx context.Context, doc *models.RouteDocument) error
	RouteDocuments(ctx context.Context) ([]models.RouteDocument, error)
}

// SettingsStore reads/writes the process-wide Settings singleton
// (spec §4.12, §4.13).
type SettingsStore interface {
	GetSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, s models.Settings) error
}
