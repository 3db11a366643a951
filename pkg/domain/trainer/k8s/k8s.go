// training jobs as in-cluster batch/v1 Jobs.
package k8s

import (
	"context"
	"fmt"
	"strings"
	"time"

	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeapierr "k8s.io/apimachinery/pkg/api/errors"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"

	conn "github.com/modelyard/modelyard/pkg/conn/k8s"
	"github.com/modelyard/modelyard/pkg/domain/trainer"
	xe "github.com/modelyard/modelyard/pkg/errors"
	"github.com/modelyard/modelyard/pkg/utils/pointer"
)

type Config struct {
	Namespace      string
	Image          string
	ServiceAccount string
}

type client struct {
	conf    Config
	cluster conn.K8sClient
	now     func() time.Time
}

var _ trainer.Interface = &client{}

func New(conf Config, cluster conn.K8sClient) *client {
	return &client{conf: conf, cluster: cluster, now: time.Now}
}

func (c *client) Start(ctx context.Context, spec trainer.JobSpec) (string, error) {
	job := &kubebatch.Job{
		ObjectMeta: kubeapimeta.ObjectMeta{
			Name: jobName(spec.AssetTypeId, c.now()),
			Labels: map[string]string{
				"app.kubernetes.io/component":     "trainer",
				"modelyard.io/asset-type":         spec.AssetTypeId,
				"modelyard.io/pipeline-component": spec.ComponentId,
			},
		},
		Spec: kubebatch.JobSpec{
			Parallelism:  pointer.Ref[int32](1),
			BackoffLimit: pointer.Ref[int32](0),
			Template: kubecore.PodTemplateSpec{
				Spec: kubecore.PodSpec{
					RestartPolicy:      kubecore.RestartPolicyNever,
					ServiceAccountName: c.conf.ServiceAccount,
					EnableServiceLinks: pointer.Ref(false),
					Containers: []kubecore.Container{
						{
							Name:  "trainer",
							Image: c.conf.Image,
							Args: []string{
								"--asset-type", spec.AssetTypeId,
								"--component", spec.ComponentId,
								"--features", strings.Join(spec.Features, ","),
							},
						},
					},
				},
			},
		},
	}

	created, err := c.cluster.CreateJob(ctx, c.conf.Namespace, job)
	if err != nil {
		return "", xe.Wrap(err)
	}
	return created.Name, nil
}

func (c *client) Kill(ctx context.Context, jobId string) (string, error) {
	if jobId == "" {
		return "no job to kill", nil
	}

	if err := c.cluster.DeleteJob(ctx, c.conf.Namespace, jobId); err != nil {
		if kubeapierr.IsNotFound(err) {
			return fmt.Sprintf("job %s is already gone", jobId), nil
		}
		return "", xe.Wrap(err)
	}
	return fmt.Sprintf("job %s killed", jobId), nil
}

// jobName renders a DNS-1123 compliant, reasonably unique Job name.
func jobName(assetTypeId string, now time.Time) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', '0' <= r && r <= '9':
			return r
		case 'A' <= r && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, assetTypeId)

	// leave room for the prefix and the timestamp within the 63 char limit
	if 32 < len(sanitized) {
		sanitized = sanitized[:32]
	}
	sanitized = strings.Trim(sanitized, "-")

	return fmt.Sprintf("ad-train-%s-%d", sanitized, now.Unix())
}
