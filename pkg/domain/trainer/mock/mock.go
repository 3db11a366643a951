package mocks

import (
	"context"
	"errors"

	"github.com/modelyard/modelyard/pkg/domain/trainer"
)

type Trainer struct {
	Impl struct {
		Start func(context.Context, trainer.JobSpec) (string, error)
		Kill  func(context.Context, string) (string, error)
	}
	Calls struct {
		Start []trainer.JobSpec
		Kill  []string
	}
}

var _ trainer.Interface = &Trainer{}

func NewTrainer() *Trainer {
	return &Trainer{}
}

func (m *Trainer) Start(ctx context.Context, spec trainer.JobSpec) (string, error) {
	m.Calls.Start = append(m.Calls.Start, spec)
	if m.Impl.Start != nil {
		return m.Impl.Start(ctx, spec)
	}

	panic(errors.New("should not be called"))
}

func (m *Trainer) Kill(ctx context.Context, jobId string) (string, error) {
	m.Calls.Kill = append(m.Calls.Kill, jobId)
	if m.Impl.Kill != nil {
		return m.Impl.Kill(ctx, jobId)
	}

	panic(errors.New("should not be called"))
}
