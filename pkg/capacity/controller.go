package capacity

import (
	"context"
	"errors"
	"fmt"

	"github.com/truefoundry/idlefleet/pkg/values"
	"go.uber.org/zap"
)

// GroupUpdater applies size bounds to a scaling group
type GroupUpdater interface {
	UpdateGroup(ctx context.Context, groupName string, capacity GroupCapacity) error
}

// ServiceUpdater applies a desired count to a service
type ServiceUpdater interface {
	UpdateService(ctx context.Context, cluster, service string, capacity ServiceCapacity) error
}

// Config is built once by the caller and handed to NewController
type Config struct {
	GroupName   string
	ClusterName string
	ServiceName string
	ScaleUp     ScaleUpSettings
	// Order defaults to OrderGroupFirst when empty
	Order UpdateOrder
}

// Controller flips the group and the service between the Idle and Active targets.
// It keeps no state between calls to Handle.
type Controller struct {
	logger  *zap.Logger
	config  Config
	group   GroupUpdater
	service ServiceUpdater
}

// NewController returns a Controller for the configured identifiers
func NewController(logger *zap.Logger, config Config, group GroupUpdater, service ServiceUpdater) (*Controller, error) {
	if group == nil || service == nil {
		return nil, errors.New("NewController: group and service updaters are required")
	}
	if config.GroupName == "" {
		return nil, &ConfigurationError{Field: "group_name", Reason: ErrMissingValue}
	}
	if config.ClusterName == "" {
		return nil, &ConfigurationError{Field: "cluster_name", Reason: ErrMissingValue}
	}
	if config.ServiceName == "" {
		return nil, &ConfigurationError{Field: "service_name", Reason: ErrMissingValue}
	}
	if config.Order == "" {
		config.Order = OrderGroupFirst
	}
	if !config.Order.valid() {
		return nil, &ConfigurationError{Field: "update_order", Value: string(config.Order), Reason: fmt.Errorf("must be %q or %q", OrderGroupFirst, OrderServiceFirst)}
	}
	return &Controller{
		logger:  logger.Named("capacityController"),
		config:  config,
		group:   group,
		service: service,
	}, nil
}

// Handle resolves the request to a target and applies it.
// Unknown actions return "no action" without touching either resource.
func (c *Controller) Handle(ctx context.Context, req Request) (Result, error) {
	action := ParseAction(req)

	var target Target
	var status string
	switch action {
	case ActionScaleDown:
		target = ZeroTarget()
		status = values.StatusScaledDown
	case ActionScaleUp:
		t, err := c.config.ScaleUp.Target()
		if err != nil {
			c.logger.Error("Invalid scale up configuration", zap.Error(err))
			return Result{}, err
		}
		target = t
		status = values.StatusScaledUp
	default:
		c.logger.Info("Ignoring request with unknown action", zap.Any("action", req[values.ActionKey]))
		return Result{Status: values.StatusNoAction}, nil
	}

	c.logger.Info("Applying capacity target",
		zap.String("action", string(action)),
		zap.String("order", string(c.config.Order)),
		zap.Stringer("group", target.Group),
		zap.Int32("serviceDesiredCount", target.Service.DesiredCount))

	if err := c.apply(ctx, target); err != nil {
		return Result{}, err
	}

	c.logger.Info("Capacity target applied", zap.String("action", string(action)), zap.String("status", status))
	return Result{Status: status}, nil
}

// apply issues the two updates in order, stopping at the first failure
func (c *Controller) apply(ctx context.Context, target Target) error {
	applied := make([]Stage, 0, 2)
	for _, stage := range c.config.Order.stages() {
		var err error
		var resource string
		switch stage {
		case StageGroup:
			resource = c.config.GroupName
			err = c.group.UpdateGroup(ctx, c.config.GroupName, target.Group)
		case StageService:
			resource = c.config.ClusterName + "/" + c.config.ServiceName
			err = c.service.UpdateService(ctx, c.config.ClusterName, c.config.ServiceName, target.Service)
		}
		if err != nil {
			updateErr := &UpdateFailedError{
				Stage:    stage,
				Resource: resource,
				Applied:  applied,
				Err:      err,
			}
			c.logger.Error("Capacity update failed",
				zap.String("stage", string(stage)),
				zap.String("resource", resource),
				zap.Bool("partial", updateErr.Partial()),
				zap.Error(err))
			return updateErr
		}
		c.logger.Debug("Capacity update applied", zap.String("stage", string(stage)), zap.String("resource", resource))
		applied = append(applied, stage)
	}
	return nil
}
