package manifest

import (
	"errors"
	"fmt"
)

const (
	homepageEditNameConstant          = "homepage"
	browserTargetsEditNameConstant    = "browser-targets"
	dependencyVersionEditNameTemplate = "dependency-version:%s"
	scriptEditNameTemplateConstant    = "script:%s"
	editFailedErrorTemplateConstant   = "manifest edit %s failed: %w"
	editWithoutActionMessageConstant  = "manifest edit has no action"
	manifestPathMissingMessage        = "manifest path not configured"
)

// ErrEditWithoutAction indicates an Edit with a nil Apply function.
var ErrEditWithoutAction = errors.New(editWithoutActionMessageConstant)

// ErrManifestPathMissing indicates an Editor constructed without a manifest path.
var ErrManifestPathMissing = errors.New(manifestPathMissingMessage)

// Edit is a named, targeted change to a manifest document.
type Edit struct {
	Name  string
	Apply func(document *Document) error
}

// HomepageEdit sets the homepage URL.
func HomepageEdit(homepage string) Edit {
	return Edit{
		Name: homepageEditNameConstant,
		Apply: func(document *Document) error {
			return document.SetHomepage(homepage)
		},
	}
}

// BrowserTargetsEdit replaces the browser-support target lists.
func BrowserTargetsEdit(browserTargets BrowserTargets) Edit {
	return Edit{
		Name: browserTargetsEditNameConstant,
		Apply: func(document *Document) error {
			return document.SetBrowserTargets(browserTargets)
		},
	}
}

// DependencyVersionEdit pins a dependency to an exact version.
func DependencyVersionEdit(dependencyName string, version string) Edit {
	return Edit{
		Name: fmt.Sprintf(dependencyVersionEditNameTemplate, dependencyName),
		Apply: func(document *Document) error {
			return document.SetDependencyVersion(dependencyName, version)
		},
	}
}

// ScriptEdit maps a script name to a command. A script that already runs the command is left as is.
func ScriptEdit(scriptName string, command string) Edit {
	return Edit{
		Name: fmt.Sprintf(scriptEditNameTemplateConstant, scriptName),
		Apply: func(document *Document) error {
			currentCommand, scriptExists, scriptError := document.Script(scriptName)
			if scriptError != nil {
				return scriptError
			}
			if scriptExists && currentCommand == command {
				return nil
			}
			return document.SetScript(scriptName, command)
		},
	}
}

// Editor applies edits to the manifest file with a full read-modify-write cycle.
type Editor struct {
	manifestPath string
}

// NewEditor constructs an Editor for the manifest at manifestPath.
func NewEditor(manifestPath string) (*Editor, error) {
	if len(manifestPath) == 0 {
		return nil, ErrManifestPathMissing
	}
	return &Editor{manifestPath: manifestPath}, nil
}

// Apply loads the manifest, applies the edit in memory and saves only when the edit succeeds.
func (editor *Editor) Apply(edit Edit) error {
	if edit.Apply == nil {
		return fmt.Errorf(editFailedErrorTemplateConstant, edit.Name, ErrEditWithoutAction)
	}

	document, loadError := Load(editor.manifestPath)
	if loadError != nil {
		return fmt.Errorf(editFailedErrorTemplateConstant, edit.Name, loadError)
	}

	if applyError := edit.Apply(document); applyError != nil {
		return fmt.Errorf(editFailedErrorTemplateConstant, edit.Name, applyError)
	}

	if saveError := document.Save(editor.manifestPath); saveError != nil {
		return fmt.Errorf(editFailedErrorTemplateConstant, edit.Name, saveError)
	}

	return nil
}

// DependencyVersion reads the constraint currently recorded for a dependency.
func (editor *Editor) DependencyVersion(dependencyName string) (string, bool, error) {
	document, loadError := Load(editor.manifestPath)
	if loadError != nil {
		return "", false, loadError
	}
	return document.DependencyVersion(dependencyName)
}
