package capacity

import (
	"errors"
	"strconv"
	"strings"
)

// ScaleUpSettings holds the raw scale-up values as they come from configuration.
// They are parsed on every scale up so a broken value only fails that path.
type ScaleUpSettings struct {
	MinSize             string
	DesiredCapacity     string
	MaxSize             string
	ServiceDesiredCount string
}

// Target parses and validates the settings into the Active target
func (s ScaleUpSettings) Target() (Target, error) {
	minSize, err := parseCount("min_size", s.MinSize)
	if err != nil {
		return Target{}, err
	}
	desired, err := parseCount("desired_capacity", s.DesiredCapacity)
	if err != nil {
		return Target{}, err
	}
	maxSize, err := parseCount("max_size", s.MaxSize)
	if err != nil {
		return Target{}, err
	}
	serviceCount, err := parseCount("service_desired_count", s.ServiceDesiredCount)
	if err != nil {
		return Target{}, err
	}

	target := Target{
		Group: GroupCapacity{
			Min:     minSize,
			Desired: desired,
			Max:     maxSize,
		},
		Service: ServiceCapacity{DesiredCount: serviceCount},
	}
	if err := target.Group.Validate(); err != nil {
		return Target{}, err
	}
	return target, nil
}

func parseCount(field, raw string) (int32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &ConfigurationError{Field: field, Reason: ErrMissingValue}
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if errors.Is(err, strconv.ErrRange) {
		return 0, &ConfigurationError{Field: field, Value: raw, Reason: ErrOutOfRange}
	}
	if err != nil {
		return 0, &ConfigurationError{Field: field, Value: raw, Reason: ErrNotNumeric}
	}
	if v < 0 {
		return 0, &ConfigurationError{Field: field, Value: raw, Reason: ErrNegativeValue}
	}
	return int32(v), nil
}
