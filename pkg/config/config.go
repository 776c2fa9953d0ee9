package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/truefoundry/idlefleet/pkg/awshelper"
	"github.com/truefoundry/idlefleet/pkg/capacity"
	"github.com/truefoundry/idlefleet/pkg/values"
)

// Config is read from the environment once at startup
type Config struct {
	// Env selects the log format, "prod" or anything else for dev
	Env               string `default:"dev"`
	SentryDsn         string `split_words:"true"`
	SentryEnvironment string `split_words:"true"`

	Port string `default:"8014"`
	// RequestTimeout bounds a single invocation, in seconds
	RequestTimeout int `split_words:"true" default:"30"`

	// UpdateOrder is "group-first" or "service-first"
	UpdateOrder string `split_words:"true" default:"group-first"`
	// ServiceBackend is "ecs" or "kubernetes"
	ServiceBackend string `split_words:"true" default:"ecs"`

	AsgName    string `envconfig:"ASG_NAME"`
	EcsCluster string `envconfig:"ECS_CLUSTER"`
	EcsService string `envconfig:"ECS_SERVICE"`

	// Scale up values are kept raw and parsed on every scale up
	ScaleUpMinSize  string `envconfig:"SCALE_UP_MIN_SIZE"`
	ScaleUpDesired  string `envconfig:"SCALE_UP_DESIRED"`
	ScaleUpMaxSize  string `envconfig:"SCALE_UP_MAX_SIZE"`
	ScaleUpEcsCount string `envconfig:"SCALE_UP_ECS_COUNT"`

	AwsRegion                string `envconfig:"AWS_REGION"`
	AwsEndpointURL           string `envconfig:"AWS_ENDPOINT_URL"`
	AwsStaticAccessKeyID     string `envconfig:"AWS_STATIC_ACCESS_KEY_ID"`
	AwsStaticSecretAccessKey string `envconfig:"AWS_STATIC_SECRET_ACCESS_KEY"`

	KubeNamespace  string `split_words:"true"`
	KubeTargetName string `split_words:"true"`
	// KubeTargetKind is "deployments" or "rollouts", singular and any case accepted
	KubeTargetKind string `split_words:"true" default:"deployments"`
}

var (
	ErrUnknownBackend      = errors.New("unknown service backend")
	ErrMissingIdentifier   = errors.New("missing resource identifier")
	ErrInvalidTimeout      = errors.New("request timeout must be positive")
	ErrSentryEnvWithoutDsn = errors.New("sentry environment set without dsn")
)

// Load reads the config from the environment and validates it
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("Load - process env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks everything needed by both actions. Scale up values are not
// checked here so scale down keeps working with a broken scale up config.
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("Validate: %w: %d", ErrInvalidTimeout, c.RequestTimeout)
	}
	if c.SentryEnvironment != "" && c.SentryDsn == "" {
		return fmt.Errorf("Validate: %w", ErrSentryEnvWithoutDsn)
	}
	if c.AsgName == "" {
		return fmt.Errorf("Validate: %w: ASG_NAME", ErrMissingIdentifier)
	}

	switch c.ServiceBackend {
	case values.BackendECS:
		if c.EcsCluster == "" {
			return fmt.Errorf("Validate: %w: ECS_CLUSTER", ErrMissingIdentifier)
		}
		if c.EcsService == "" {
			return fmt.Errorf("Validate: %w: ECS_SERVICE", ErrMissingIdentifier)
		}
	case values.BackendKubernetes:
		if c.KubeNamespace == "" {
			return fmt.Errorf("Validate: %w: KUBE_NAMESPACE", ErrMissingIdentifier)
		}
		if c.KubeTargetName == "" {
			return fmt.Errorf("Validate: %w: KUBE_TARGET_NAME", ErrMissingIdentifier)
		}
	default:
		return fmt.Errorf("Validate: %w: %q", ErrUnknownBackend, c.ServiceBackend)
	}
	return nil
}

// SentryEnabled reports whether errors should be forwarded to Sentry
func (c *Config) SentryEnabled() bool {
	return c.SentryDsn != ""
}

// Timeout is the deadline imposed on a single invocation
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// ScaleUpSettings returns the raw scale up values
func (c *Config) ScaleUpSettings() capacity.ScaleUpSettings {
	return capacity.ScaleUpSettings{
		MinSize:             c.ScaleUpMinSize,
		DesiredCapacity:     c.ScaleUpDesired,
		MaxSize:             c.ScaleUpMaxSize,
		ServiceDesiredCount: c.ScaleUpEcsCount,
	}
}

// ControllerConfig maps the environment onto the controller's identifiers.
// With the kubernetes backend the namespace plays the role of the cluster.
func (c *Config) ControllerConfig() capacity.Config {
	cfg := capacity.Config{
		GroupName:   c.AsgName,
		ClusterName: c.EcsCluster,
		ServiceName: c.EcsService,
		ScaleUp:     c.ScaleUpSettings(),
		Order:       capacity.UpdateOrder(c.UpdateOrder),
	}
	if c.ServiceBackend == values.BackendKubernetes {
		cfg.ClusterName = c.KubeNamespace
		cfg.ServiceName = c.KubeTargetName
	}
	return cfg
}

// AWSOptions returns the options used to load the AWS config
func (c *Config) AWSOptions() awshelper.Options {
	return awshelper.Options{
		Region:          c.AwsRegion,
		Endpoint:        c.AwsEndpointURL,
		AccessKeyID:     c.AwsStaticAccessKeyID,
		SecretAccessKey: c.AwsStaticSecretAccessKey,
	}
}
