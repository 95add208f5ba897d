package upgrade

import (
	"strings"
	"time"

	"github.com/temirov/toolbump/internal/cipatch"
	"github.com/temirov/toolbump/internal/manifest"
	"github.com/temirov/toolbump/internal/verify"
)

const (
	projectConfigurationKeyConstant  = "project"
	upgradeConfigurationKeyConstant  = "upgrade"
	verifyConfigurationKeyConstant   = "verify"
	workflowConfigurationKeyConstant = "workflow"
	metricsFileConfigurationKey      = "metrics_file"

	defaultProjectDirectoryConstant = "."
	defaultHomepageConstant         = "."
	defaultJournalFileNameConstant  = "upgrade.log"
	defaultWorkflowPathConstant     = ".github/workflows/deploy.yml"
)

// ProjectConfiguration describes the project being upgraded and its cosmetic manifest edits.
type ProjectConfiguration struct {
	Directory      string                      `mapstructure:"directory"`
	Homepage       string                      `mapstructure:"homepage"`
	JournalFile    string                      `mapstructure:"journal_file"`
	BrowserTargets BrowserTargetsConfiguration `mapstructure:"browserslist"`
	Scripts        map[string]string           `mapstructure:"scripts"`
}

// BrowserTargetsConfiguration lists browser-support queries per environment.
type BrowserTargetsConfiguration struct {
	Production  []string `mapstructure:"production"`
	Development []string `mapstructure:"development"`
}

// StepsConfiguration describes the upgrade path and dependency installation limits.
type StepsConfiguration struct {
	PackageName          string        `mapstructure:"package"`
	Steps                []Step        `mapstructure:"steps"`
	PlanFile             string        `mapstructure:"plan_file"`
	CleanupBackup        bool          `mapstructure:"cleanup_backup"`
	TargetInstallTimeout time.Duration `mapstructure:"target_install_timeout"`
	FullInstallTimeout   time.Duration `mapstructure:"full_install_timeout"`
	CleanTimeout         time.Duration `mapstructure:"clean_timeout"`
}

// VerifyConfiguration describes the build command used for verification.
type VerifyConfiguration struct {
	Arguments         []string      `mapstructure:"arguments"`
	OutputDirectory   string        `mapstructure:"output_directory"`
	Timeout           time.Duration `mapstructure:"timeout"`
	LegacyEnvironment []string      `mapstructure:"legacy_environment"`
	EnvironmentFile   string        `mapstructure:"environment_file"`
}

// WorkflowConfiguration describes the CI workflow patch.
type WorkflowConfiguration struct {
	Path           string `mapstructure:"path"`
	RuntimeVersion string `mapstructure:"runtime_version"`
	SourceToken    string `mapstructure:"source_token"`
	TargetToken    string `mapstructure:"target_token"`
}

// CommandConfiguration captures persisted configuration shared by the upgrade and baseline commands.
type CommandConfiguration struct {
	Project     ProjectConfiguration  `mapstructure:"project"`
	Upgrade     StepsConfiguration    `mapstructure:"upgrade"`
	Verify      VerifyConfiguration   `mapstructure:"verify"`
	Workflow    WorkflowConfiguration `mapstructure:"workflow"`
	MetricsFile string                `mapstructure:"metrics_file"`
}

// DefaultCommandConfiguration returns baseline configuration values.
func DefaultCommandConfiguration() CommandConfiguration {
	defaultPlan := DefaultPlan()
	verifyDefaults := verify.DefaultOptions(defaultProjectDirectoryConstant)
	ruleDefaults := cipatch.DefaultRuleOptions()
	return CommandConfiguration{
		Project: ProjectConfiguration{
			Directory:   defaultProjectDirectoryConstant,
			Homepage:    defaultHomepageConstant,
			JournalFile: defaultJournalFileNameConstant,
			BrowserTargets: BrowserTargetsConfiguration{
				Production:  []string{">0.2%", "not dead", "not op_mini all"},
				Development: []string{"last 1 chrome version", "last 1 firefox version", "last 1 safari version"},
			},
		},
		Upgrade: StepsConfiguration{
			PackageName:          defaultPlan.PackageName,
			Steps:                defaultPlan.Steps,
			TargetInstallTimeout: defaultTargetInstallTimeout,
			FullInstallTimeout:   defaultFullInstallTimeout,
			CleanTimeout:         defaultCleanTimeout,
		},
		Verify: VerifyConfiguration{
			Arguments:         verifyDefaults.Arguments,
			OutputDirectory:   verifyDefaults.OutputDirectory,
			Timeout:           verifyDefaults.Timeout,
			LegacyEnvironment: verifyDefaults.LegacyEnvironment,
		},
		Workflow: WorkflowConfiguration{
			Path:           defaultWorkflowPathConstant,
			RuntimeVersion: ruleDefaults.RuntimeVersion,
			SourceToken:    ruleDefaults.SourceToken,
			TargetToken:    ruleDefaults.TargetToken,
		},
	}
}

// DefaultConfigurationValues produces Viper defaults for the scalar configuration keys.
// List and step values come from the embedded configuration document.
func DefaultConfigurationValues() map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		projectConfigurationKeyConstant + ".directory":              defaults.Project.Directory,
		projectConfigurationKeyConstant + ".homepage":               defaults.Project.Homepage,
		projectConfigurationKeyConstant + ".journal_file":           defaults.Project.JournalFile,
		upgradeConfigurationKeyConstant + ".package":                defaults.Upgrade.PackageName,
		upgradeConfigurationKeyConstant + ".plan_file":              defaults.Upgrade.PlanFile,
		upgradeConfigurationKeyConstant + ".cleanup_backup":         defaults.Upgrade.CleanupBackup,
		upgradeConfigurationKeyConstant + ".target_install_timeout": defaults.Upgrade.TargetInstallTimeout,
		upgradeConfigurationKeyConstant + ".full_install_timeout":   defaults.Upgrade.FullInstallTimeout,
		upgradeConfigurationKeyConstant + ".clean_timeout":          defaults.Upgrade.CleanTimeout,
		verifyConfigurationKeyConstant + ".output_directory":        defaults.Verify.OutputDirectory,
		verifyConfigurationKeyConstant + ".timeout":                 defaults.Verify.Timeout,
		verifyConfigurationKeyConstant + ".environment_file":        defaults.Verify.EnvironmentFile,
		workflowConfigurationKeyConstant + ".path":                  defaults.Workflow.Path,
		workflowConfigurationKeyConstant + ".runtime_version":       defaults.Workflow.RuntimeVersion,
		workflowConfigurationKeyConstant + ".source_token":          defaults.Workflow.SourceToken,
		workflowConfigurationKeyConstant + ".target_token":          defaults.Workflow.TargetToken,
		metricsFileConfigurationKey:                                 defaults.MetricsFile,
	}
}

// Sanitize trims configured values and fills in missing defaults.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.Project.Directory = fallbackString(configuration.Project.Directory, defaults.Project.Directory)
	sanitized.Project.Homepage = strings.TrimSpace(configuration.Project.Homepage)
	sanitized.Project.JournalFile = fallbackString(configuration.Project.JournalFile, defaults.Project.JournalFile)
	sanitized.Project.BrowserTargets.Production = trimEntries(configuration.Project.BrowserTargets.Production)
	sanitized.Project.BrowserTargets.Development = trimEntries(configuration.Project.BrowserTargets.Development)
	sanitized.Project.Scripts = trimScripts(configuration.Project.Scripts)

	sanitized.Upgrade.PackageName = fallbackString(configuration.Upgrade.PackageName, defaults.Upgrade.PackageName)
	sanitized.Upgrade.PlanFile = strings.TrimSpace(configuration.Upgrade.PlanFile)
	if len(configuration.Upgrade.Steps) == 0 {
		sanitized.Upgrade.Steps = defaults.Upgrade.Steps
	}
	sanitized.Upgrade.TargetInstallTimeout = fallbackDuration(configuration.Upgrade.TargetInstallTimeout, defaults.Upgrade.TargetInstallTimeout)
	sanitized.Upgrade.FullInstallTimeout = fallbackDuration(configuration.Upgrade.FullInstallTimeout, defaults.Upgrade.FullInstallTimeout)
	sanitized.Upgrade.CleanTimeout = fallbackDuration(configuration.Upgrade.CleanTimeout, defaults.Upgrade.CleanTimeout)

	sanitized.Verify.Arguments = trimEntries(configuration.Verify.Arguments)
	if len(sanitized.Verify.Arguments) == 0 {
		sanitized.Verify.Arguments = defaults.Verify.Arguments
	}
	sanitized.Verify.OutputDirectory = fallbackString(configuration.Verify.OutputDirectory, defaults.Verify.OutputDirectory)
	sanitized.Verify.Timeout = fallbackDuration(configuration.Verify.Timeout, defaults.Verify.Timeout)
	sanitized.Verify.LegacyEnvironment = trimEntries(configuration.Verify.LegacyEnvironment)
	if len(sanitized.Verify.LegacyEnvironment) == 0 {
		sanitized.Verify.LegacyEnvironment = defaults.Verify.LegacyEnvironment
	}
	sanitized.Verify.EnvironmentFile = strings.TrimSpace(configuration.Verify.EnvironmentFile)

	sanitized.Workflow.Path = strings.TrimSpace(configuration.Workflow.Path)
	sanitized.Workflow.RuntimeVersion = fallbackString(configuration.Workflow.RuntimeVersion, defaults.Workflow.RuntimeVersion)
	sanitized.Workflow.SourceToken = strings.TrimSpace(configuration.Workflow.SourceToken)
	sanitized.Workflow.TargetToken = strings.TrimSpace(configuration.Workflow.TargetToken)

	sanitized.MetricsFile = strings.TrimSpace(configuration.MetricsFile)
	return sanitized
}

// Plan assembles the upgrade plan described by the configuration.
func (configuration CommandConfiguration) Plan() (Plan, error) {
	if len(configuration.Upgrade.PlanFile) > 0 {
		plan, loadError := LoadPlan(configuration.Upgrade.PlanFile)
		if loadError != nil {
			return Plan{}, loadError
		}
		if len(plan.PackageName) == 0 {
			plan.PackageName = configuration.Upgrade.PackageName
		}
		plan = plan.Normalize()
		return plan, plan.Validate()
	}

	plan := Plan{PackageName: configuration.Upgrade.PackageName, Steps: append([]Step{}, configuration.Upgrade.Steps...)}.Normalize()
	return plan, plan.Validate()
}

// BrowserTargets converts the configured browser-support lists.
func (configuration CommandConfiguration) BrowserTargets() manifest.BrowserTargets {
	return manifest.BrowserTargets{
		Production:  append([]string{}, configuration.Project.BrowserTargets.Production...),
		Development: append([]string{}, configuration.Project.BrowserTargets.Development...),
	}
}

// Scripts returns the script mappings to write into the manifest.
func (configuration CommandConfiguration) Scripts() map[string]string {
	scripts := make(map[string]string, len(configuration.Project.Scripts))
	for scriptName, command := range configuration.Project.Scripts {
		scripts[scriptName] = command
	}
	return scripts
}

// WorkflowRules builds the ordered CI workflow rule set.
func (configuration CommandConfiguration) WorkflowRules() cipatch.RuleSet {
	return cipatch.DefaultRules(cipatch.RuleOptions{
		RuntimeVersion: configuration.Workflow.RuntimeVersion,
		SourceToken:    configuration.Workflow.SourceToken,
		TargetToken:    configuration.Workflow.TargetToken,
	})
}

// VerifyOptions converts the verification section for a project directory.
func (configuration CommandConfiguration) VerifyOptions(projectDirectory string) verify.Options {
	return verify.Options{
		ProjectDirectory:  projectDirectory,
		Arguments:         append([]string{}, configuration.Verify.Arguments...),
		OutputDirectory:   configuration.Verify.OutputDirectory,
		Timeout:           configuration.Verify.Timeout,
		LegacyEnvironment: append([]string{}, configuration.Verify.LegacyEnvironment...),
		EnvironmentFile:   configuration.Verify.EnvironmentFile,
	}
}

// InstallerOptions converts the installation limits for a project directory.
func (configuration CommandConfiguration) InstallerOptions(projectDirectory string) InstallerOptions {
	return InstallerOptions{
		ProjectDirectory:     projectDirectory,
		TargetInstallTimeout: configuration.Upgrade.TargetInstallTimeout,
		FullInstallTimeout:   configuration.Upgrade.FullInstallTimeout,
		CleanTimeout:         configuration.Upgrade.CleanTimeout,
	}
}

func fallbackString(value string, fallback string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallback
	}
	return trimmedValue
}

func fallbackDuration(value time.Duration, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}

func trimEntries(values []string) []string {
	trimmed := make([]string, 0, len(values))
	for _, value := range values {
		if trimmedValue := strings.TrimSpace(value); len(trimmedValue) > 0 {
			trimmed = append(trimmed, trimmedValue)
		}
	}
	return trimmed
}

func trimScripts(scripts map[string]string) map[string]string {
	if len(scripts) == 0 {
		return nil
	}
	trimmed := make(map[string]string, len(scripts))
	for scriptName, command := range scripts {
		trimmedName := strings.TrimSpace(scriptName)
		trimmedCommand := strings.TrimSpace(command)
		if len(trimmedName) == 0 || len(trimmedCommand) == 0 {
			continue
		}
		trimmed[trimmedName] = trimmedCommand
	}
	if len(trimmed) == 0 {
		return nil
	}
	return trimmed
}
