package tracking

import (
	"fmt"

	"go.einride.tech/aip/resourcename"
)

// Resource name patterns for the tracking API hierarchy.
const (
	ExperimentNamePattern = "experiments/{experiment}"
	RunNamePattern        = "experiments/{experiment}/runs/{run}"
)

// ExperimentName formats an experiment resource name.
func ExperimentName(experiment string) string {
	return resourcename.Sprint(ExperimentNamePattern, experiment)
}

// RunName formats a run resource name.
func RunName(experiment, run string) string {
	return resourcename.Sprint(RunNamePattern, experiment, run)
}

// ValidateExperimentName checks that name is a well-formed experiment
// resource name.
func ValidateExperimentName(name string) error {
	if err := resourcename.Validate(name); err != nil {
		return fmt.Errorf("experiment name %q: %w", name, err)
	}
	if !resourcename.Match(ExperimentNamePattern, name) {
		return fmt.Errorf("experiment name %q: want pattern %s", name, ExperimentNamePattern)
	}
	return nil
}

// ValidateRunName checks that name is a well-formed run resource name.
func ValidateRunName(name string) error {
	if err := resourcename.Validate(name); err != nil {
		return fmt.Errorf("run name %q: %w", name, err)
	}
	if !resourcename.Match(RunNamePattern, name) {
		return fmt.Errorf("run name %q: want pattern %s", name, RunNamePattern)
	}
	return nil
}
