package awshelper

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/smithy-go"
	"github.com/truefoundry/idlefleet/pkg/capacity"
	"go.uber.org/zap"
)

// AutoScalingAPI is the part of the autoscaling client used here
type AutoScalingAPI interface {
	UpdateAutoScalingGroup(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error)
}

// ECSAPI is the part of the ecs client used here
type ECSAPI interface {
	UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
}

// GroupOps updates an EC2 Auto Scaling group
type GroupOps struct {
	client AutoScalingAPI
	logger *zap.Logger
}

// NewGroupOps creates GroupOps from a loaded AWS config
func NewGroupOps(logger *zap.Logger, cfg aws.Config) *GroupOps {
	return NewGroupOpsWithClient(logger, autoscaling.NewFromConfig(cfg))
}

// NewGroupOpsWithClient creates GroupOps around an existing client
func NewGroupOpsWithClient(logger *zap.Logger, client AutoScalingAPI) *GroupOps {
	return &GroupOps{
		client: client,
		logger: logger.Named("asgOps"),
	}
}

// UpdateGroup sets min, desired and max of the group in a single call
func (g *GroupOps) UpdateGroup(ctx context.Context, groupName string, c capacity.GroupCapacity) error {
	g.logger.Info("Updating auto scaling group",
		zap.String("group", groupName),
		zap.Int32("min", c.Min),
		zap.Int32("desired", c.Desired),
		zap.Int32("max", c.Max))

	_, err := g.client.UpdateAutoScalingGroup(ctx, &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(groupName),
		MinSize:              aws.Int32(c.Min),
		DesiredCapacity:      aws.Int32(c.Desired),
		MaxSize:              aws.Int32(c.Max),
	})
	if err != nil {
		g.logger.Warn("Auto scaling group update rejected", zap.String("group", groupName), zap.String("code", ErrorCode(err)), zap.Error(err))
		return fmt.Errorf("UpdateGroup - UpdateAutoScalingGroup: %w", err)
	}
	return nil
}

// ServiceOps updates an ECS service
type ServiceOps struct {
	client ECSAPI
	logger *zap.Logger
}

// NewServiceOps creates ServiceOps from a loaded AWS config
func NewServiceOps(logger *zap.Logger, cfg aws.Config) *ServiceOps {
	return NewServiceOpsWithClient(logger, ecs.NewFromConfig(cfg))
}

// NewServiceOpsWithClient creates ServiceOps around an existing client
func NewServiceOpsWithClient(logger *zap.Logger, client ECSAPI) *ServiceOps {
	return &ServiceOps{
		client: client,
		logger: logger.Named("ecsOps"),
	}
}

// UpdateService sets the desired count of the service in a single call
func (s *ServiceOps) UpdateService(ctx context.Context, cluster, service string, c capacity.ServiceCapacity) error {
	s.logger.Info("Updating ECS service",
		zap.String("cluster", cluster),
		zap.String("service", service),
		zap.Int32("desiredCount", c.DesiredCount))

	_, err := s.client.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:      aws.String(cluster),
		Service:      aws.String(service),
		DesiredCount: aws.Int32(c.DesiredCount),
	})
	if err != nil {
		s.logger.Warn("ECS service update rejected", zap.String("cluster", cluster), zap.String("service", service), zap.String("code", ErrorCode(err)), zap.Error(err))
		return fmt.Errorf("UpdateService - UpdateService: %w", err)
	}
	return nil
}

// ErrorCode returns the AWS API error code carried by err, or "" if there is none
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
