package manifest

import (
	"fmt"
)

const (
	// HomepageField holds the public URL the application is served from.
	HomepageField = "homepage"
	// DependenciesField maps runtime dependency names to version constraints.
	DependenciesField = "dependencies"
	// DevelopmentDependenciesField maps development dependency names to version constraints.
	DevelopmentDependenciesField = "devDependencies"
	// ScriptsField maps script names to shell commands.
	ScriptsField = "scripts"
	// BrowserTargetsField holds the browser-support target lists.
	BrowserTargetsField = "browserslist"

	productionTargetsKeyConstant  = "production"
	developmentTargetsKeyConstant = "development"
)

// BrowserTargets is the browser-support specification split by build mode.
type BrowserTargets struct {
	Production  []string
	Development []string
}

// Homepage returns the homepage URL.
func (document *Document) Homepage() (string, bool, error) {
	return document.String(HomepageField)
}

// SetHomepage replaces the homepage URL.
func (document *Document) SetHomepage(homepage string) error {
	return document.Set(HomepageField, homepage)
}

// DependencyVersion returns the constraint recorded for a dependency, looking at runtime dependencies first.
func (document *Document) DependencyVersion(dependencyName string) (string, bool, error) {
	for _, sectionName := range []string{DependenciesField, DevelopmentDependenciesField} {
		section, sectionExists, sectionError := document.Object(sectionName)
		if sectionError != nil {
			return "", false, sectionError
		}
		if !sectionExists {
			continue
		}
		version, versionExists, versionError := section.String(dependencyName)
		if versionError != nil || versionExists {
			return version, versionExists, versionError
		}
	}
	return "", false, nil
}

// SetDependencyVersion records an exact constraint in the section that already lists the dependency,
// or in runtime dependencies when no section does.
func (document *Document) SetDependencyVersion(dependencyName string, version string) error {
	targetSection := DependenciesField
	developmentSection, developmentExists, developmentError := document.Object(DevelopmentDependenciesField)
	if developmentError != nil {
		return developmentError
	}
	if developmentExists && developmentSection.Has(dependencyName) {
		runtimeSection, _, runtimeError := document.Object(DependenciesField)
		if runtimeError != nil {
			return runtimeError
		}
		if runtimeSection == nil || !runtimeSection.Has(dependencyName) {
			targetSection = DevelopmentDependenciesField
		}
	}
	return document.setNestedString(targetSection, dependencyName, version)
}

// Script returns the command mapped to a script name.
func (document *Document) Script(scriptName string) (string, bool, error) {
	scripts, scriptsExist, scriptsError := document.Object(ScriptsField)
	if scriptsError != nil || !scriptsExist {
		return "", false, scriptsError
	}
	return scripts.String(scriptName)
}

// SetScript maps a script name to a command.
func (document *Document) SetScript(scriptName string, command string) error {
	return document.setNestedString(ScriptsField, scriptName, command)
}

// BrowserTargets returns the production and development target lists.
func (document *Document) BrowserTargets() (BrowserTargets, bool, error) {
	targets, targetsExist, targetsError := document.Object(BrowserTargetsField)
	if targetsError != nil || !targetsExist {
		return BrowserTargets{}, false, targetsError
	}
	var browserTargets BrowserTargets
	if decodeError := decodeField(targets, productionTargetsKeyConstant, &browserTargets.Production); decodeError != nil {
		return BrowserTargets{}, true, decodeError
	}
	if decodeError := decodeField(targets, developmentTargetsKeyConstant, &browserTargets.Development); decodeError != nil {
		return BrowserTargets{}, true, decodeError
	}
	return browserTargets, true, nil
}

// SetBrowserTargets replaces both target lists, keeping any other keys of the specification.
func (document *Document) SetBrowserTargets(browserTargets BrowserTargets) error {
	targets, _, targetsError := document.Object(BrowserTargetsField)
	if targetsError != nil {
		return targetsError
	}
	if targets == nil {
		targets = NewDocument()
	}
	if setError := targets.Set(productionTargetsKeyConstant, nonNilList(browserTargets.Production)); setError != nil {
		return setError
	}
	if setError := targets.Set(developmentTargetsKeyConstant, nonNilList(browserTargets.Development)); setError != nil {
		return setError
	}
	return document.SetObject(BrowserTargetsField, targets)
}

func (document *Document) setNestedString(sectionName string, key string, value string) error {
	section, _, sectionError := document.Object(sectionName)
	if sectionError != nil {
		return fmt.Errorf(fieldNotObjectTemplateConstant, sectionName)
	}
	if section == nil {
		section = NewDocument()
	}
	if setError := section.Set(key, value); setError != nil {
		return setError
	}
	return document.SetObject(sectionName, section)
}

func nonNilList(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
