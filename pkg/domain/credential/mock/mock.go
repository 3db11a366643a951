package mocks

import (
	"context"
	"errors"

	"github.com/modelyard/modelyard/pkg/domain/credential"
)

type Provider struct {
	Impl struct {
		Get    func(context.Context, string) (credential.SubscriptionConfig, error)
		GetAll func(context.Context) (map[string]credential.SubscriptionConfig, error)
	}
	Calls struct {
		Get    []string
		GetAll int
	}
}

var _ credential.Provider = &Provider{}

func NewProvider() *Provider {
	return &Provider{}
}

func (m *Provider) Get(ctx context.Context, subscription string) (credential.SubscriptionConfig, error) {
	m.Calls.Get = append(m.Calls.Get, subscription)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, subscription)
	}

	panic(errors.New("should not be called"))
}

func (m *Provider) GetAll(ctx context.Context) (map[string]credential.SubscriptionConfig, error) {
	m.Calls.GetAll += 1
	if m.Impl.GetAll != nil {
		return m.Impl.GetAll(ctx)
	}

	panic(errors.New("should not be called"))
}
