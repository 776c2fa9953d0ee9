package capacity

import (
	"fmt"

	"github.com/truefoundry/idlefleet/pkg/values"
)

// Action is the scaling action resolved from an incoming request
type Action string

const (
	ActionScaleUp   Action = values.ActionScaleUp
	ActionScaleDown Action = values.ActionScaleDown
	ActionUnknown   Action = ""
)

// Request is the opaque trigger payload. Only the "action" key is read.
type Request map[string]any

// ParseAction maps the request's action field to an Action by exact match.
// A missing field, a non-string value or any other string is ActionUnknown.
func ParseAction(req Request) Action {
	raw, ok := req[values.ActionKey]
	if !ok {
		return ActionUnknown
	}
	action, ok := raw.(string)
	if !ok {
		return ActionUnknown
	}
	switch action {
	case values.ActionScaleUp:
		return ActionScaleUp
	case values.ActionScaleDown:
		return ActionScaleDown
	default:
		return ActionUnknown
	}
}

// GroupCapacity are the size bounds applied to the scaling group
type GroupCapacity struct {
	Min     int32 `json:"min"`
	Desired int32 `json:"desired"`
	Max     int32 `json:"max"`
}

// Validate checks 0 <= Min <= Desired <= Max
func (g GroupCapacity) Validate() error {
	if g.Min < 0 || g.Desired < 0 || g.Max < 0 {
		return &ConfigurationError{
			Field:  "group",
			Value:  g.String(),
			Reason: ErrNegativeValue,
		}
	}
	if g.Min > g.Desired || g.Desired > g.Max {
		return &ConfigurationError{
			Field:  "group",
			Value:  g.String(),
			Reason: ErrBoundsViolated,
		}
	}
	return nil
}

func (g GroupCapacity) String() string {
	return fmt.Sprintf("min=%d desired=%d max=%d", g.Min, g.Desired, g.Max)
}

// ServiceCapacity is the desired task count applied to the service
type ServiceCapacity struct {
	DesiredCount int32 `json:"desiredCount"`
}

// Target is the pair of directives applied in one invocation
type Target struct {
	Group   GroupCapacity   `json:"group"`
	Service ServiceCapacity `json:"service"`
}

// ZeroTarget is the Idle target, applied on every scale down
func ZeroTarget() Target {
	return Target{}
}

// IsZero reports whether every directive of the target is zero
func (t Target) IsZero() bool {
	return t == Target{}
}

// Result is returned to the caller of Handle
type Result struct {
	Status string `json:"status"`
}

// UpdateOrder decides which resource is updated first. It applies to both directions.
type UpdateOrder string

const (
	// OrderGroupFirst updates the scaling group before the service
	OrderGroupFirst UpdateOrder = "group-first"
	// OrderServiceFirst updates the service before the scaling group, draining work before capacity goes away
	OrderServiceFirst UpdateOrder = "service-first"
)

// Stage identifies one of the two resources touched by an invocation
type Stage string

const (
	StageGroup   Stage = "scaling-group"
	StageService Stage = "service"
)

// stages returns the update sequence for the order
func (o UpdateOrder) stages() []Stage {
	if o == OrderServiceFirst {
		return []Stage{StageService, StageGroup}
	}
	return []Stage{StageGroup, StageService}
}

func (o UpdateOrder) valid() bool {
	return o == OrderGroupFirst || o == OrderServiceFirst
}
