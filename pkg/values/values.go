package values

import (
	"time"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	ActionKey       = "action"
	ActionScaleUp   = "scale_up"
	ActionScaleDown = "scale_down"

	StatusScaledUp   = "scaled up"
	StatusScaledDown = "scaled down"
	StatusNoAction   = "no action"

	BackendECS        = "ecs"
	BackendKubernetes = "kubernetes"

	KindDeployments = "deployments"
	KindRollout     = "rollouts"

	Success = "success"

	DefaultRequestTimeout = 30 * time.Second
	InvokePath            = "/invoke"
)

var (
	RolloutGVR = schema.GroupVersionResource{
		Group:    "argoproj.io",
		Version:  "v1alpha1",
		Resource: "rollouts",
	}
)
