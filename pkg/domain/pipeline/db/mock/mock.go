// this package provide "mock" implementation of database for testing.
package mocks

import (
	"context"
	"errors"

	"github.com/modelyard/modelyard/pkg/domain"
	kdbmock "github.com/modelyard/modelyard/pkg/domain/internal/db/mock"
	kdb "github.com/modelyard/modelyard/pkg/domain/pipeline/db"
)

type PipelineKey struct {
	AssetTypeId string
	ComponentId string
}

type UpdateArgs struct {
	Key        PipelineKey
	Attributes domain.PipelineAttributes
}

type SetInitArtifactsArgs struct {
	Key           PipelineKey
	InitArtifacts bool
}

type PipelineInterface struct {
	Impl struct {
		GetAll           func(context.Context) ([]domain.PipelineRecord, error)
		Get              func(context.Context, string, string) (domain.PipelineRecord, error)
		Create           func(context.Context, domain.PipelineRecord) error
		Update           func(context.Context, string, string, domain.PipelineAttributes) error
		UpdateAll        func(context.Context, []domain.PipelineRecord) error
		SetInitArtifacts func(context.Context, string, string, bool) error
		Delete           func(context.Context, string, string) error
	}
	Calls struct {
		GetAll           kdbmock.CallLog[struct{}]
		Get              kdbmock.CallLog[PipelineKey]
		Create           kdbmock.CallLog[domain.PipelineRecord]
		Update           kdbmock.CallLog[UpdateArgs]
		UpdateAll        kdbmock.CallLog[[]domain.PipelineRecord]
		SetInitArtifacts kdbmock.CallLog[SetInitArtifactsArgs]
		Delete           kdbmock.CallLog[PipelineKey]
	}
}

var _ kdb.PipelineInterface = &PipelineInterface{}

func NewPipelineInterface() *PipelineInterface {
	return &PipelineInterface{}
}

func (m *PipelineInterface) GetAll(ctx context.Context) ([]domain.PipelineRecord, error) {
	m.Calls.GetAll = append(m.Calls.GetAll, struct{}{})
	if m.Impl.GetAll != nil {
		return m.Impl.GetAll(ctx)
	}

	panic(errors.New("should not be called"))
}

func (m *PipelineInterface) Get(ctx context.Context, assetTypeId, componentId string) (domain.PipelineRecord, error) {
	m.Calls.Get = append(m.Calls.Get, PipelineKey{AssetTypeId: assetTypeId, ComponentId: componentId})
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, assetTypeId, componentId)
	}

	panic(errors.New("should not be called"))
}

func (m *PipelineInterface) Create(ctx context.Context, record domain.PipelineRecord) error {
	m.Calls.Create = append(m.Calls.Create, record)
	if m.Impl.Create != nil {
		return m.Impl.Create(ctx, record)
	}

	panic(errors.New("should not be called"))
}

func (m *PipelineInterface) Update(ctx context.Context, assetTypeId, componentId string, attributes domain.PipelineAttributes) error {
	m.Calls.Update = append(m.Calls.Update, UpdateArgs{
		Key:        PipelineKey{AssetTypeId: assetTypeId, ComponentId: componentId},
		Attributes: attributes,
	})
	if m.Impl.Update != nil {
		return m.Impl.Update(ctx, assetTypeId, componentId, attributes)
	}

	panic(errors.New("should not be called"))
}

func (m *PipelineInterface) UpdateAll(ctx context.Context, records []domain.PipelineRecord) error {
	m.Calls.UpdateAll = append(m.Calls.UpdateAll, records)
	if m.Impl.UpdateAll != nil {
		return m.Impl.UpdateAll(ctx, records)
	}

	panic(errors.New("should not be called"))
}

func (m *PipelineInterface) SetInitArtifacts(ctx context.Context, assetTypeId, componentId string, initArtifacts bool) error {
	m.Calls.SetInitArtifacts = append(m.Calls.SetInitArtifacts, SetInitArtifactsArgs{
		Key:           PipelineKey{AssetTypeId: assetTypeId, ComponentId: componentId},
		InitArtifacts: initArtifacts,
	})
	if m.Impl.SetInitArtifacts != nil {
		return m.Impl.SetInitArtifacts(ctx, assetTypeId, componentId, initArtifacts)
	}

	panic(errors.New("should not be called"))
}

func (m *PipelineInterface) Delete(ctx context.Context, assetTypeId, componentId string) error {
	m.Calls.Delete = append(m.Calls.Delete, PipelineKey{AssetTypeId: assetTypeId, ComponentId: componentId})
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, assetTypeId, componentId)
	}

	panic(errors.New("should not be called"))
}
