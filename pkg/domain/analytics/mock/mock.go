package mocks

import (
	"context"
	"errors"
	"time"

	"github.com/modelyard/modelyard/pkg/domain/analytics"
)

type CountRecordsArgs struct {
	AssetTypeId string
	Attributes  []string
}

type PurgeArgs struct {
	AssetTypeId string
	OlderThan   time.Duration
}

type Analytics struct {
	Impl struct {
		CountRecords func(context.Context, string, []string) (int, error)
		Purge        func(context.Context, string, time.Duration) error
	}
	Calls struct {
		CountRecords []CountRecordsArgs
		Purge        []PurgeArgs
	}
}

var _ analytics.Interface = &Analytics{}

func NewAnalytics() *Analytics {
	return &Analytics{}
}

func (m *Analytics) CountRecords(ctx context.Context, assetTypeId string, attributes []string) (int, error) {
	m.Calls.CountRecords = append(m.Calls.CountRecords, CountRecordsArgs{
		AssetTypeId: assetTypeId, Attributes: attributes,
	})
	if m.Impl.CountRecords != nil {
		return m.Impl.CountRecords(ctx, assetTypeId, attributes)
	}

	panic(errors.New("should not be called"))
}

func (m *Analytics) Purge(ctx context.Context, assetTypeId string, olderThan time.Duration) error {
	m.Calls.Purge = append(m.Calls.Purge, PurgeArgs{AssetTypeId: assetTypeId, OlderThan: olderThan})
	if m.Impl.Purge != nil {
		return m.Impl.Purge(ctx, assetTypeId, olderThan)
	}

	panic(errors.New("should not be called"))
}
