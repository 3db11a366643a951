package mocks

import (
	"context"
	"errors"

	"github.com/modelyard/modelyard/pkg/domain/artifacts"
)

type TensorModel struct {
	InputNames  []string
	OutputNames []string

	Impl struct {
		Exec func(context.Context, map[string]artifacts.Tensor) (map[string]artifacts.Tensor, error)
	}
	Calls struct {
		Exec []map[string]artifacts.Tensor
	}
}

var _ artifacts.TensorModel = &TensorModel{}

func NewTensorModel() *TensorModel {
	return &TensorModel{}
}

func (m *TensorModel) Inputs() []string {
	return m.InputNames
}

func (m *TensorModel) Outputs() []string {
	return m.OutputNames
}

func (m *TensorModel) Exec(ctx context.Context, inputs map[string]artifacts.Tensor) (map[string]artifacts.Tensor, error) {
	m.Calls.Exec = append(m.Calls.Exec, inputs)
	if m.Impl.Exec != nil {
		return m.Impl.Exec(ctx, inputs)
	}

	panic(errors.New("should not be called"))
}

type BlobKey struct {
	Bucket string
	Path   string
}

type Registry struct {
	Impl struct {
		Open func(context.Context, string, string) (artifacts.TensorModel, error)
	}
	Calls struct {
		Open []BlobKey
	}
}

var _ artifacts.Registry = &Registry{}

func NewRegistry() *Registry {
	return &Registry{}
}

func (m *Registry) Open(ctx context.Context, bucket string, path string) (artifacts.TensorModel, error) {
	m.Calls.Open = append(m.Calls.Open, BlobKey{Bucket: bucket, Path: path})
	if m.Impl.Open != nil {
		return m.Impl.Open(ctx, bucket, path)
	}

	panic(errors.New("should not be called"))
}

type BlobReader struct {
	Impl struct {
		ReadText func(context.Context, string, string) (string, error)
	}
	Calls struct {
		ReadText []BlobKey
	}
}

var _ artifacts.BlobReader = &BlobReader{}

func NewBlobReader() *BlobReader {
	return &BlobReader{}
}

func (m *BlobReader) ReadText(ctx context.Context, bucket string, path string) (string, error) {
	m.Calls.ReadText = append(m.Calls.ReadText, BlobKey{Bucket: bucket, Path: path})
	if m.Impl.ReadText != nil {
		return m.Impl.ReadText(ctx, bucket, path)
	}

	panic(errors.New("should not be called"))
}
