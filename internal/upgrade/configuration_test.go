package upgrade_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/toolbump/internal/cipatch"
	"github.com/temirov/toolbump/internal/upgrade"
)

func TestCommandConfigurationSanitizeAppliesDefaults(testInstance *testing.T) {
	sanitized := upgrade.CommandConfiguration{
		Project: upgrade.ProjectConfiguration{
			Directory: "  ",
			Homepage:  " https://example.com/app ",
			BrowserTargets: upgrade.BrowserTargetsConfiguration{
				Production: []string{" >0.2% ", "", "not dead"},
			},
			Scripts: map[string]string{" build ": " react-scripts build ", "": "echo", "lint": " "},
		},
		Verify: upgrade.VerifyConfiguration{Arguments: []string{" "}},
	}.Sanitize()

	require.Equal(testInstance, ".", sanitized.Project.Directory)
	require.Equal(testInstance, "upgrade.log", sanitized.Project.JournalFile)
	require.Equal(testInstance, "https://example.com/app", sanitized.Project.Homepage)
	require.Equal(testInstance, []string{">0.2%", "not dead"}, sanitized.Project.BrowserTargets.Production)
	require.Equal(testInstance, map[string]string{"build": "react-scripts build"}, sanitized.Project.Scripts)
	require.Equal(testInstance, map[string]string{"build": "react-scripts build"}, sanitized.Scripts())
	require.Equal(testInstance, "react-scripts", sanitized.Upgrade.PackageName)
	require.Equal(testInstance, []string{"5.0.0", "5.0.1"}, []string{sanitized.Upgrade.Steps[0].TargetVersion, sanitized.Upgrade.Steps[1].TargetVersion})
	require.Equal(testInstance, 180*time.Second, sanitized.Upgrade.TargetInstallTimeout)
	require.Equal(testInstance, []string{"run", "build"}, sanitized.Verify.Arguments)
	require.Equal(testInstance, 300*time.Second, sanitized.Verify.Timeout)
	require.Equal(testInstance, []string{"NODE_OPTIONS=--openssl-legacy-provider"}, sanitized.Verify.LegacyEnvironment)
	require.Equal(testInstance, "18", sanitized.Workflow.RuntimeVersion)
}

func TestCommandConfigurationPlanPrefersPlanFile(testInstance *testing.T) {
	planPath := filepath.Join(testInstance.TempDir(), "plan.yaml")
	require.NoError(testInstance, os.WriteFile(planPath, []byte("steps:\n  - version: 5.0.1\n"), 0o644))

	configuration := upgrade.DefaultCommandConfiguration()
	configuration.Upgrade.PackageName = "react-scripts"
	configuration.Upgrade.PlanFile = planPath

	plan, planError := configuration.Plan()
	require.NoError(testInstance, planError)
	require.Equal(testInstance, "react-scripts", plan.PackageName)
	require.Equal(testInstance, []string{"5.0.1"}, plan.Versions())
}

func TestCommandConfigurationConversions(testInstance *testing.T) {
	configuration := upgrade.DefaultCommandConfiguration()
	configuration.Workflow.SourceToken = "build"
	configuration.Workflow.TargetToken = "build"

	ruleNames := []string{}
	for _, rule := range configuration.WorkflowRules() {
		ruleNames = append(ruleNames, rule.Name)
	}
	require.Equal(testInstance, []string{cipatch.RuleRuntimeVersion, cipatch.RuleDropLegacyOpenSSL}, ruleNames)

	verifyOptions := configuration.VerifyOptions("/workspace/app")
	require.Equal(testInstance, "/workspace/app", verifyOptions.ProjectDirectory)
	require.Equal(testInstance, "build", verifyOptions.OutputDirectory)

	installerOptions := configuration.InstallerOptions("/workspace/app")
	require.Equal(testInstance, 300*time.Second, installerOptions.FullInstallTimeout)
	require.Equal(testInstance, 60*time.Second, installerOptions.CleanTimeout)

	browserTargets := configuration.BrowserTargets()
	require.Equal(testInstance, configuration.Project.BrowserTargets.Development, browserTargets.Development)
}

func TestDefaultConfigurationValuesCoverScalars(testInstance *testing.T) {
	values := upgrade.DefaultConfigurationValues()
	require.Equal(testInstance, ".", values["project.directory"])
	require.Equal(testInstance, "react-scripts", values["upgrade.package"])
	require.Equal(testInstance, ".github/workflows/deploy.yml", values["workflow.path"])
	require.Equal(testInstance, 300*time.Second, values["verify.timeout"])
	require.Contains(testInstance, values, "metrics_file")
}
