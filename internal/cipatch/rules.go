package cipatch

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// RuleRuntimeVersion pins the Node.js runtime used by the workflow.
	RuleRuntimeVersion = "runtime-version"
	// RuleDropLegacyOpenSSL removes the legacy OpenSSL provider flag from the workflow environment.
	RuleDropLegacyOpenSSL = "drop-legacy-openssl"
	// RuleRenameToken renames the build output directory token.
	RuleRenameToken = "rename-token"

	defaultRuntimeVersionConstant      = "18"
	defaultSourceTokenConstant         = "dist"
	defaultTargetTokenConstant         = "build"
	runtimeVersionPatternConstant      = `(?m)^([ \t]*-?[ \t]*node-version[ \t]*:[ \t]*)[^\r\n#]*?([ \t]*(?:#[^\r\n]*)?)$`
	runtimeVersionReplacementTemplate  = "${1}'%s'${2}"
	legacyOpenSSLLinePatternConstant   = `(?m)^[ \t]*(?:-[ \t]*)?(?:export[ \t]+)?NODE_OPTIONS[ \t]*[=:][ \t]*["']?--openssl-legacy-provider["']?[ \t]*(?:\r?\n|$)`
	legacyOpenSSLInlinePatternConstant = `NODE_OPTIONS=["']?--openssl-legacy-provider["']?[ \t]+`
	wordBoundaryTemplateConstant       = `\b%s\b`
	emptyReplacementConstant           = ""
)

// Substitution is one regular expression replacement.
type Substitution struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Rule is a named group of substitutions applied together.
type Rule struct {
	Name          string
	Substitutions []Substitution
}

// Apply runs the rule's substitutions in order and reports whether the content changed.
func (rule Rule) Apply(content string) (string, bool) {
	updatedContent := content
	for _, substitution := range rule.Substitutions {
		updatedContent = substitution.Pattern.ReplaceAllString(updatedContent, substitution.Replacement)
	}
	return updatedContent, updatedContent != content
}

// RuleSet is an ordered list of rules.
type RuleSet []Rule

// Apply runs every rule in order and returns the names of the rules that changed the content.
func (ruleSet RuleSet) Apply(content string) (string, []string) {
	updatedContent := content
	appliedRules := []string{}
	for _, rule := range ruleSet {
		var changed bool
		updatedContent, changed = rule.Apply(updatedContent)
		if changed {
			appliedRules = append(appliedRules, rule.Name)
		}
	}
	return updatedContent, appliedRules
}

// RuleOptions parameterizes the default rule set.
type RuleOptions struct {
	RuntimeVersion string
	SourceToken    string
	TargetToken    string
}

// DefaultRuleOptions returns the runtime version and token rename used by the upgraded toolchain.
func DefaultRuleOptions() RuleOptions {
	return RuleOptions{
		RuntimeVersion: defaultRuntimeVersionConstant,
		SourceToken:    defaultSourceTokenConstant,
		TargetToken:    defaultTargetTokenConstant,
	}
}

// DefaultRules builds the workflow rules in their fixed order.
// Empty options fall back to the defaults; a rename whose source equals its target is omitted.
func DefaultRules(options RuleOptions) RuleSet {
	defaults := DefaultRuleOptions()
	runtimeVersion := strings.Trim(strings.TrimSpace(options.RuntimeVersion), `"'`)
	if len(runtimeVersion) == 0 {
		runtimeVersion = defaults.RuntimeVersion
	}
	sourceToken := strings.TrimSpace(options.SourceToken)
	if len(sourceToken) == 0 {
		sourceToken = defaults.SourceToken
	}
	targetToken := strings.TrimSpace(options.TargetToken)
	if len(targetToken) == 0 {
		targetToken = defaults.TargetToken
	}

	rules := RuleSet{
		{
			Name: RuleRuntimeVersion,
			Substitutions: []Substitution{
				{
					Pattern:     regexp.MustCompile(runtimeVersionPatternConstant),
					Replacement: fmt.Sprintf(runtimeVersionReplacementTemplate, strings.ReplaceAll(runtimeVersion, "$", "$$")),
				},
			},
		},
		{
			Name: RuleDropLegacyOpenSSL,
			Substitutions: []Substitution{
				{Pattern: regexp.MustCompile(legacyOpenSSLLinePatternConstant), Replacement: emptyReplacementConstant},
				{Pattern: regexp.MustCompile(legacyOpenSSLInlinePatternConstant), Replacement: emptyReplacementConstant},
			},
		},
	}

	if sourceToken != targetToken {
		rules = append(rules, Rule{
			Name: RuleRenameToken,
			Substitutions: []Substitution{
				{
					Pattern:     regexp.MustCompile(fmt.Sprintf(wordBoundaryTemplateConstant, regexp.QuoteMeta(sourceToken))),
					Replacement: strings.ReplaceAll(targetToken, "$", "$$"),
				},
			},
		})
	}

	return rules
}
