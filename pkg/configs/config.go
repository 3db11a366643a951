package configs

import "time"

// Configuration of a modelyard deployment.
//
// To get an instance, use `ConfigMarshall.TrySeal()` (almost always via
// `Load`). All fields are validated and defaulted there; getters never
// return half-baked values.
type Config struct {
	port     int32
	loglevel string
	database string

	// identifier of this installation, forwarded to training jobs.
	systemKey string

	credentials *CredentialConfig
	analytics   *AnalyticsConfig
	trainer     *TrainerConfig
	artifacts   *ArtifactsConfig
}

func (c *Config) Port() int32 {
	return c.port
}

func (c *Config) LogLevel() string {
	return c.loglevel
}

// Connection string for database.
func (c *Config) Database() string {
	return c.database
}

func (c *Config) SystemKey() string {
	return c.systemKey
}

func (c *Config) Credentials() *CredentialConfig {
	return c.credentials
}

func (c *Config) Analytics() *AnalyticsConfig {
	return c.analytics
}

func (c *Config) Trainer() *TrainerConfig {
	return c.trainer
}

func (c *Config) Artifacts() *ArtifactsConfig {
	return c.artifacts
}

// Where bearer credentials are cached.
type CredentialConfig struct {
	namespace string
	secret    string
}

// k8s namespace holding the token cache secret.
func (c *CredentialConfig) Namespace() string {
	return c.namespace
}

// name of the k8s secret holding one subscription per key.
func (c *CredentialConfig) Secret() string {
	return c.secret
}

// Where & how to count accumulated data rows.
type AnalyticsConfig struct {
	endpoint string
	project  string
	dataset  string
	timeout  time.Duration
}

func (a *AnalyticsConfig) Endpoint() string {
	return a.endpoint
}

func (a *AnalyticsConfig) Project() string {
	return a.project
}

func (a *AnalyticsConfig) Dataset() string {
	return a.dataset
}

// per-query timeout.
func (a *AnalyticsConfig) Timeout() time.Duration {
	return a.timeout
}

type TrainerMode string

const (
	// start training jobs via the remote pipeline-job HTTP API.
	TrainerModeRest TrainerMode = "rest"

	// start training jobs as in-cluster k8s batch Jobs.
	TrainerModeK8s TrainerMode = "k8s"
)

// How training jobs are started & killed.
type TrainerConfig struct {
	mode    TrainerMode
	rest    *RestTrainerConfig
	k8s     *K8sTrainerConfig
	timeout time.Duration
}

func (t *TrainerConfig) Mode() TrainerMode {
	return t.mode
}

// configuration of the HTTP trainer. non-nil when Mode() == TrainerModeRest.
func (t *TrainerConfig) Rest() *RestTrainerConfig {
	return t.rest
}

// configuration of the k8s trainer. non-nil when Mode() == TrainerModeK8s.
func (t *TrainerConfig) K8s() *K8sTrainerConfig {
	return t.k8s
}

// per-call timeout of start/kill operations.
func (t *TrainerConfig) Timeout() time.Duration {
	return t.timeout
}

type RestTrainerConfig struct {
	endpoint        string
	project         string
	location        string
	template        string
	serviceAccount  string
	outputDirectory string
}

func (r *RestTrainerConfig) Endpoint() string {
	return r.endpoint
}

func (r *RestTrainerConfig) Project() string {
	return r.project
}

func (r *RestTrainerConfig) Location() string {
	return r.location
}

// reference of the training pipeline template to instantiate.
func (r *RestTrainerConfig) Template() string {
	return r.template
}

func (r *RestTrainerConfig) ServiceAccount() string {
	return r.serviceAccount
}

// where the training run writes its artifacts.
func (r *RestTrainerConfig) OutputDirectory() string {
	return r.outputDirectory
}

type K8sTrainerConfig struct {
	namespace      string
	image          string
	serviceAccount string
}

func (k *K8sTrainerConfig) Namespace() string {
	return k.namespace
}

// container image running the trainer. validated as an image reference.
func (k *K8sTrainerConfig) Image() string {
	return k.image
}

func (k *K8sTrainerConfig) ServiceAccount() string {
	return k.serviceAccount
}

// Where trained model artifacts are served from.
type ArtifactsConfig struct {
	modelHost string
	timeout   time.Duration
}

// base URL of the model-execution host.
func (a *ArtifactsConfig) ModelHost() string {
	return a.modelHost
}

func (a *ArtifactsConfig) Timeout() time.Duration {
	return a.timeout
}
