package backend

import (
	"context"
	"fmt"

	"github.com/truefoundry/idlefleet/pkg/awshelper"
	"github.com/truefoundry/idlefleet/pkg/capacity"
	"github.com/truefoundry/idlefleet/pkg/config"
	"github.com/truefoundry/idlefleet/pkg/k8shelper"
	"github.com/truefoundry/idlefleet/pkg/values"
	"go.uber.org/zap"
)

// NewController builds the controller with the updaters selected by the config.
// The scaling group is always an EC2 Auto Scaling group; the service is either
// an ECS service or a Kubernetes workload.
func NewController(ctx context.Context, logger *zap.Logger, cfg *config.Config) (*capacity.Controller, error) {
	awsCfg, err := awshelper.LoadConfig(ctx, cfg.AWSOptions())
	if err != nil {
		return nil, fmt.Errorf("NewController - aws config: %w", err)
	}
	group := awshelper.NewGroupOps(logger, awsCfg)

	var service capacity.ServiceUpdater
	switch cfg.ServiceBackend {
	case values.BackendECS:
		service = awshelper.NewServiceOps(logger, awsCfg)
	case values.BackendKubernetes:
		restConfig, err := k8shelper.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("NewController - kube config: %w", err)
		}
		service, err = k8shelper.NewServiceOps(logger, restConfig, cfg.KubeTargetKind)
		if err != nil {
			return nil, fmt.Errorf("NewController - kube ops: %w", err)
		}
	default:
		return nil, fmt.Errorf("NewController: %w: %q", config.ErrUnknownBackend, cfg.ServiceBackend)
	}

	controller, err := capacity.NewController(logger, cfg.ControllerConfig(), group, service)
	if err != nil {
		return nil, fmt.Errorf("NewController: %w", err)
	}

	if _, err := cfg.ScaleUpSettings().Target(); err != nil {
		logger.Warn("Scale up settings are invalid, scale_up requests will fail until fixed", zap.Error(err))
	}
	return controller, nil
}
