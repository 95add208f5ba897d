package upgrade_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/toolbump/internal/upgrade"
)

func TestDefaultPlan(testInstance *testing.T) {
	plan := upgrade.DefaultPlan()
	require.NoError(testInstance, plan.Validate())
	require.Equal(testInstance, "react-scripts", plan.PackageName)
	require.Equal(testInstance, []string{"5.0.0", "5.0.1"}, plan.Versions())
	require.Equal(testInstance, "Upgrade to react-scripts 5.0.1", plan.Steps[1].Description)
}

func TestLoadPlan(testInstance *testing.T) {
	testCases := []struct {
		name             string
		content          string
		expectLoadError  bool
		expectedVersions []string
		expectedError    error
	}{
		{
			name: "ordered_steps",
			content: `package: react-scripts
steps:
  - version: 4.0.3
  - version: 5.0.1
    description: Jump straight to 5.0.1
`,
			expectedVersions: []string{"4.0.3", "5.0.1"},
		},
		{
			name:            "unknown_field",
			content:         "package: react-scripts\nstep: []\n",
			expectLoadError: true,
		},
		{
			name:             "empty_steps",
			content:          "package: react-scripts\nsteps: []\n",
			expectedVersions: []string{},
			expectedError:    upgrade.ErrPlanStepsMissing,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			planPath := filepath.Join(testInstance.TempDir(), "plan.yaml")
			require.NoError(testInstance, os.WriteFile(planPath, []byte(testCase.content), 0o644))

			plan, loadError := upgrade.LoadPlan(planPath)
			if testCase.expectLoadError {
				require.Error(testInstance, loadError)
				return
			}
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedVersions, plan.Versions())
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, plan.Validate(), testCase.expectedError)
			} else {
				require.NoError(testInstance, plan.Validate())
			}
		})
	}
}

func TestPlanNormalizeFillsDescriptionsAndKeepsOrder(testInstance *testing.T) {
	plan := upgrade.Plan{
		PackageName: " react-scripts ",
		Steps: []upgrade.Step{
			{TargetVersion: " 5.0.1 "},
			{TargetVersion: "5.0.0", Description: "older"},
			{TargetVersion: "5.0.1"},
		},
	}.Normalize()

	require.Equal(testInstance, "react-scripts", plan.PackageName)
	require.Equal(testInstance, []string{"5.0.1", "5.0.0", "5.0.1"}, plan.Versions())
	require.Equal(testInstance, "Upgrade to react-scripts 5.0.1", plan.Steps[0].Description)
	require.Equal(testInstance, "older", plan.Steps[1].Description)
}

func TestPlanValidate(testInstance *testing.T) {
	require.ErrorIs(testInstance, upgrade.Plan{Steps: []upgrade.Step{{TargetVersion: "5.0.0"}}}.Validate(), upgrade.ErrPlanPackageMissing)
	require.ErrorIs(testInstance, upgrade.Plan{PackageName: "react-scripts"}.Validate(), upgrade.ErrPlanStepsMissing)
	require.Error(testInstance, upgrade.Plan{PackageName: "react-scripts", Steps: []upgrade.Step{{}}}.Validate())
}
