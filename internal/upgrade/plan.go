package upgrade

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPackageName is the build-tool dependency upgraded when no plan names one.
	DefaultPackageName = "react-scripts"

	stepDescriptionTemplateConstant   = "Upgrade to %s %s"
	planPackageMissingMessageConstant = "upgrade plan does not name a package"
	planStepsMissingMessageConstant   = "upgrade plan has no steps"
	planStepVersionMissingTemplate    = "upgrade plan step %d has no version"
	readPlanErrorTemplateConstant     = "unable to read upgrade plan %s: %w"
	parsePlanErrorTemplateConstant    = "unable to parse upgrade plan %s: %w"
)

// ErrPlanPackageMissing indicates a plan without a package name.
var ErrPlanPackageMissing = errors.New(planPackageMissingMessageConstant)

// ErrPlanStepsMissing indicates a plan without steps.
var ErrPlanStepsMissing = errors.New(planStepsMissingMessageConstant)

// Step is one candidate target version.
type Step struct {
	TargetVersion string `yaml:"version" mapstructure:"version"`
	Description   string `yaml:"description" mapstructure:"description"`
}

// Plan is the ordered upgrade path for one package. Steps are tried in order and never reordered.
type Plan struct {
	PackageName string `yaml:"package" mapstructure:"package"`
	Steps       []Step `yaml:"steps" mapstructure:"steps"`
}

// DefaultPlan returns the react-scripts 5.0.0 then 5.0.1 path.
func DefaultPlan() Plan {
	return Plan{
		PackageName: DefaultPackageName,
		Steps: []Step{
			{TargetVersion: "5.0.0", Description: fmt.Sprintf(stepDescriptionTemplateConstant, DefaultPackageName, "5.0.0")},
			{TargetVersion: "5.0.1", Description: fmt.Sprintf(stepDescriptionTemplateConstant, DefaultPackageName, "5.0.1")},
		},
	}
}

// LoadPlan reads a YAML plan document. Unknown fields are rejected.
func LoadPlan(planPath string) (Plan, error) {
	content, readError := os.ReadFile(planPath)
	if readError != nil {
		return Plan{}, fmt.Errorf(readPlanErrorTemplateConstant, planPath, readError)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)

	var plan Plan
	if decodeError := decoder.Decode(&plan); decodeError != nil {
		return Plan{}, fmt.Errorf(parsePlanErrorTemplateConstant, planPath, decodeError)
	}

	return plan.Normalize(), nil
}

// Normalize trims values and fills in missing step descriptions.
func (plan Plan) Normalize() Plan {
	normalized := Plan{PackageName: strings.TrimSpace(plan.PackageName), Steps: make([]Step, 0, len(plan.Steps))}
	for _, step := range plan.Steps {
		normalizedStep := Step{
			TargetVersion: strings.TrimSpace(step.TargetVersion),
			Description:   strings.TrimSpace(step.Description),
		}
		if len(normalizedStep.Description) == 0 && len(normalizedStep.TargetVersion) > 0 {
			normalizedStep.Description = fmt.Sprintf(stepDescriptionTemplateConstant, normalized.PackageName, normalizedStep.TargetVersion)
		}
		normalized.Steps = append(normalized.Steps, normalizedStep)
	}
	return normalized
}

// Validate reports plans that cannot be executed.
func (plan Plan) Validate() error {
	if len(strings.TrimSpace(plan.PackageName)) == 0 {
		return ErrPlanPackageMissing
	}
	if len(plan.Steps) == 0 {
		return ErrPlanStepsMissing
	}
	for stepIndex, step := range plan.Steps {
		if len(strings.TrimSpace(step.TargetVersion)) == 0 {
			return fmt.Errorf(planStepVersionMissingTemplate, stepIndex+1)
		}
	}
	return nil
}

// Versions lists the target versions in order.
func (plan Plan) Versions() []string {
	versions := make([]string, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		versions = append(versions, step.TargetVersion)
	}
	return versions
}
