package configs

import (
	"fmt"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// Configuration of modelyard.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `Config`.
// You can get `Config` instance with `TrySeal(ConfigMarshall)`.
type ConfigMarshall struct {
	Port        int32                      `yaml:"port"`
	LogLevel    string                     `yaml:"loglevel,omitempty"`
	Database    string                     `yaml:"database"`
	SystemKey   string                     `yaml:"systemKey"`
	Credentials *CredentialConfigMarshall  `yaml:"credentials"`
	Analytics   *AnalyticsConfigMarshall   `yaml:"analytics"`
	Trainer     *TrainerConfigMarshall     `yaml:"trainer"`
	Artifacts   *ArtifactsConfigMarshall   `yaml:"artifacts"`
}

var _ Marshalled[*Config] = &ConfigMarshall{}

func (c *ConfigMarshall) trySeal(path string) *Config {
	loglevel := c.LogLevel
	if loglevel == "" {
		loglevel = "info"
	}
	return &Config{
		port:        required(c.Port, path+".port"),
		loglevel:    loglevel,
		database:    required(c.Database, path+".database"),
		systemKey:   required(c.SystemKey, path+".systemKey"),
		credentials: nonnil(c.Credentials, path+".credentials").trySeal(path + ".credentials"),
		analytics:   nonnil(c.Analytics, path+".analytics").trySeal(path + ".analytics"),
		trainer:     nonnil(c.Trainer, path+".trainer").trySeal(path + ".trainer"),
		artifacts:   nonnil(c.Artifacts, path+".artifacts").trySeal(path + ".artifacts"),
	}
}

type CredentialConfigMarshall struct {
	Namespace string `yaml:"namespace"`
	Secret    string `yaml:"secret"`
}

func (c *CredentialConfigMarshall) trySeal(path string) *CredentialConfig {
	return &CredentialConfig{
		namespace: required(c.Namespace, path+".namespace"),
		secret:    required(c.Secret, path+".secret"),
	}
}

type AnalyticsConfigMarshall struct {
	Endpoint string `yaml:"endpoint"`
	Project  string `yaml:"project"`
	Dataset  string `yaml:"dataset"`
	Timeout  string `yaml:"timeout,omitempty"`
}

func (a *AnalyticsConfigMarshall) trySeal(path string) *AnalyticsConfig {
	return &AnalyticsConfig{
		endpoint: required(a.Endpoint, path+".endpoint"),
		project:  required(a.Project, path+".project"),
		dataset:  required(a.Dataset, path+".dataset"),
		timeout:  duration(a.Timeout, 60*time.Second, path+".timeout"),
	}
}

type TrainerConfigMarshall struct {
	Mode    string                     `yaml:"mode"`
	Rest    *RestTrainerConfigMarshall `yaml:"rest,omitempty"`
	K8s     *K8sTrainerConfigMarshall  `yaml:"k8s,omitempty"`
	Timeout string                     `yaml:"timeout,omitempty"`
}

func (t *TrainerConfigMarshall) trySeal(path string) *TrainerConfig {
	sealed := &TrainerConfig{
		timeout: duration(t.Timeout, 60*time.Second, path+".timeout"),
	}
	switch TrainerMode(t.Mode) {
	case TrainerModeRest:
		sealed.mode = TrainerModeRest
		sealed.rest = nonnil(t.Rest, path+".rest").trySeal(path + ".rest")
	case TrainerModeK8s:
		sealed.mode = TrainerModeK8s
		sealed.k8s = nonnil(t.K8s, path+".k8s").trySeal(path + ".k8s")
	default:
		panic(fmt.Errorf(`%s.mode should be "rest" or "k8s", but: %s`, path, t.Mode))
	}
	return sealed
}

type RestTrainerConfigMarshall struct {
	Endpoint        string `yaml:"endpoint"`
	Project         string `yaml:"project"`
	Location        string `yaml:"location"`
	Template        string `yaml:"template"`
	ServiceAccount  string `yaml:"serviceAccount"`
	OutputDirectory string `yaml:"outputDirectory"`
}

func (r *RestTrainerConfigMarshall) trySeal(path string) *RestTrainerConfig {
	return &RestTrainerConfig{
		endpoint:        required(r.Endpoint, path+".endpoint"),
		project:         required(r.Project, path+".project"),
		location:        required(r.Location, path+".location"),
		template:        required(r.Template, path+".template"),
		serviceAccount:  required(r.ServiceAccount, path+".serviceAccount"),
		outputDirectory: required(r.OutputDirectory, path+".outputDirectory"),
	}
}

type K8sTrainerConfigMarshall struct {
	Namespace      string `yaml:"namespace"`
	Image          string `yaml:"image"`
	ServiceAccount string `yaml:"serviceAccount"`
}

func (k *K8sTrainerConfigMarshall) trySeal(path string) *K8sTrainerConfig {
	image := required(k.Image, path+".image")
	if _, err := name.ParseReference(image); err != nil {
		panic(fmt.Errorf("%s.image is not an image reference: %w", path, err))
	}
	return &K8sTrainerConfig{
		namespace:      required(k.Namespace, path+".namespace"),
		image:          image,
		serviceAccount: k.ServiceAccount,
	}
}

type ArtifactsConfigMarshall struct {
	ModelHost string `yaml:"modelHost"`
	Timeout   string `yaml:"timeout,omitempty"`
}

func (a *ArtifactsConfigMarshall) trySeal(path string) *ArtifactsConfig {
	return &ArtifactsConfig{
		modelHost: required(a.ModelHost, path+".modelHost"),
		timeout:   duration(a.Timeout, 30*time.Second, path+".timeout"),
	}
}

func required[T comparable](value T, path string) T {
	var zero T
	if value == zero {
		panic(fmt.Errorf("%s is required", path))
	}
	return value
}

func nonnil[T any](value *T, path string) *T {
	if value == nil {
		panic(fmt.Errorf("%s is required", path))
	}
	return value
}

func duration(value string, fallback time.Duration, path string) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed as duration: %w", path, err))
	}
	return d
}
