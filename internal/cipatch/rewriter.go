package cipatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/temirov/toolbump/internal/utils"
)

const (
	workflowMissingLogMessageConstant    = "Workflow file not found; skipping rewrite"
	skipRewriteLogMessageConstant        = "No workflow rewrites required"
	rewriteLogMessageConstant            = "Rewrote workflow file"
	workflowFileFieldNameConstant        = "workflow_file"
	appliedRulesFieldNameConstant        = "applied_rules"
	workflowPathRequiredMessageConstant  = "workflow path not configured"
	invalidWorkflowMessageConstant       = "patched workflow is not valid YAML"
	workflowNotRegularFileTemplate       = "workflow path is not a regular file: %s"
	inspectWorkflowErrorTemplateConstant = "unable to inspect workflow file %s: %w"
	readWorkflowErrorTemplateConstant    = "unable to read workflow file %s: %w"
	writeWorkflowErrorTemplateConstant   = "unable to write workflow file %s: %w"
	invalidWorkflowErrorTemplateConstant = "%w (%s left unchanged): %v"
	defaultWorkflowPermissionsConstant   = 0o644
)

// ErrWorkflowPathRequired indicates a rewrite without a workflow path.
var ErrWorkflowPathRequired = errors.New(workflowPathRequiredMessageConstant)

// ErrInvalidPatchedWorkflow indicates the rewritten text no longer parses as YAML.
var ErrInvalidPatchedWorkflow = errors.New(invalidWorkflowMessageConstant)

// RewriteConfig selects the workflow file and the rules applied to it.
type RewriteConfig struct {
	WorkflowPath string
	Rules        RuleSet
}

// Outcome describes a completed rewrite.
type Outcome struct {
	WorkflowPath string
	Updated      bool
	Skipped      bool
	AppliedRules []string
}

// Rewriter applies rule sets to a workflow file.
type Rewriter struct {
	logger *zap.Logger
}

// NewRewriter constructs a Rewriter.
func NewRewriter(logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{logger: logger}
}

// Rewrite applies the configured rules. A missing workflow is a skipped rewrite, not an error.
// The file is replaced only when the rewritten text still parses as YAML.
func (rewriter *Rewriter) Rewrite(_ context.Context, config RewriteConfig) (Outcome, error) {
	if len(config.WorkflowPath) == 0 {
		return Outcome{}, ErrWorkflowPathRequired
	}
	outcome := Outcome{WorkflowPath: config.WorkflowPath, AppliedRules: []string{}}

	fileInfo, statError := os.Stat(config.WorkflowPath)
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			rewriter.logger.Info(workflowMissingLogMessageConstant, zap.String(workflowFileFieldNameConstant, config.WorkflowPath))
			outcome.Skipped = true
			return outcome, nil
		}
		return Outcome{}, fmt.Errorf(inspectWorkflowErrorTemplateConstant, config.WorkflowPath, statError)
	}
	if !fileInfo.Mode().IsRegular() {
		return Outcome{}, fmt.Errorf(workflowNotRegularFileTemplate, config.WorkflowPath)
	}

	fileContent, readError := os.ReadFile(config.WorkflowPath)
	if readError != nil {
		return Outcome{}, fmt.Errorf(readWorkflowErrorTemplateConstant, config.WorkflowPath, readError)
	}

	updatedContent, appliedRules := config.Rules.Apply(string(fileContent))
	if len(appliedRules) == 0 {
		rewriter.logger.Debug(skipRewriteLogMessageConstant, zap.String(workflowFileFieldNameConstant, config.WorkflowPath))
		return outcome, nil
	}

	var parsedWorkflow yaml.Node
	if parseError := yaml.Unmarshal([]byte(updatedContent), &parsedWorkflow); parseError != nil {
		return Outcome{}, fmt.Errorf(invalidWorkflowErrorTemplateConstant, ErrInvalidPatchedWorkflow, config.WorkflowPath, parseError)
	}

	permissions := utils.FilePermissions(config.WorkflowPath, defaultWorkflowPermissionsConstant)
	if writeError := utils.WriteFileAtomically(config.WorkflowPath, []byte(updatedContent), permissions); writeError != nil {
		return Outcome{}, fmt.Errorf(writeWorkflowErrorTemplateConstant, config.WorkflowPath, writeError)
	}

	rewriter.logger.Info(rewriteLogMessageConstant,
		zap.String(workflowFileFieldNameConstant, config.WorkflowPath),
		zap.Strings(appliedRulesFieldNameConstant, appliedRules),
	)

	outcome.Updated = true
	outcome.AppliedRules = appliedRules
	return outcome, nil
}
