package mocks

import (
	"context"
	"errors"

	k8s "github.com/modelyard/modelyard/pkg/conn/k8s"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
)

type SecretKey struct {
	Namespace string
	Name      string
}

type K8sClient struct {
	Impl struct {
		GetSecret func(context.Context, string, string) (*kubecore.Secret, error)
		GetJob    func(context.Context, string, string) (*kubebatch.Job, error)
		CreateJob func(context.Context, string, *kubebatch.Job) (*kubebatch.Job, error)
		DeleteJob func(context.Context, string, string) error
	}
	Calls struct {
		GetSecret []SecretKey
		GetJob    []string
		CreateJob []*kubebatch.Job
		DeleteJob []string
	}
}

var _ k8s.K8sClient = &K8sClient{}

func NewK8sClient() *K8sClient {
	return &K8sClient{}
}

func (m *K8sClient) GetSecret(ctx context.Context, namespace string, name string) (*kubecore.Secret, error) {
	m.Calls.GetSecret = append(m.Calls.GetSecret, SecretKey{Namespace: namespace, Name: name})
	if m.Impl.GetSecret != nil {
		return m.Impl.GetSecret(ctx, namespace, name)
	}

	panic(errors.New("should not be called"))
}

func (m *K8sClient) GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error) {
	m.Calls.GetJob = append(m.Calls.GetJob, name)
	if m.Impl.GetJob != nil {
		return m.Impl.GetJob(ctx, namespace, name)
	}

	panic(errors.New("should not be called"))
}

func (m *K8sClient) CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error) {
	m.Calls.CreateJob = append(m.Calls.CreateJob, job)
	if m.Impl.CreateJob != nil {
		return m.Impl.CreateJob(ctx, namespace, job)
	}

	panic(errors.New("should not be called"))
}

func (m *K8sClient) DeleteJob(ctx context.Context, namespace string, name string) error {
	m.Calls.DeleteJob = append(m.Calls.DeleteJob, name)
	if m.Impl.DeleteJob != nil {
		return m.Impl.DeleteJob(ctx, namespace, name)
	}

	panic(errors.New("should not be called"))
}
