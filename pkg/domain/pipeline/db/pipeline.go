package db

import (
	"context"

	"github.com/modelyard/modelyard/pkg/domain"
)

// Store of pipeline records, keyed by (asset type id, component id).
type PipelineInterface interface {
	// fetch all pipeline records.
	GetAll(ctx context.Context) ([]domain.PipelineRecord, error)

	// fetch one record by key.
	//
	// # Returns
	//
	// - domain.PipelineRecord
	//
	// - error: domain.ErrMissing when no such record.
	Get(ctx context.Context, assetTypeId, componentId string) (domain.PipelineRecord, error)

	// create a record.
	//
	// # Returns
	//
	// - error: domain.ErrAlreadyExists when the key is taken already.
	Create(ctx context.Context, record domain.PipelineRecord) error

	// update feature attributes, threshold and/or frequency of a record.
	//
	// Run handles, run timestamps and the init_artifacts flag are owned by
	// the lifecycle manager; this method never touches them.
	//
	// # Returns
	//
	// - error: domain.ErrMissing when no such record.
	Update(ctx context.Context, assetTypeId, componentId string, attributes domain.PipelineAttributes) error

	// persist the given records wholesale, in a single transaction.
	//
	// This is the batched write at the end of a lifecycle cycle;
	// each record is written as-is (run handles and timestamps included).
	// Records missing from the store are skipped, not created.
	UpdateAll(ctx context.Context, records []domain.PipelineRecord) error

	// set the init_artifacts flag of a record.
	//
	// # Returns
	//
	// - error: domain.ErrMissing when no such record.
	SetInitArtifacts(ctx context.Context, assetTypeId, componentId string, initArtifacts bool) error

	// delete a record by key. deleting a missing record is not an error.
	Delete(ctx context.Context, assetTypeId, componentId string) error
}
