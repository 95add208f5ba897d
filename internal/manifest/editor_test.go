package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/toolbump/internal/manifest"
)

func writeManifest(testInstance *testing.T, content string) string {
	testInstance.Helper()
	manifestPath := filepath.Join(testInstance.TempDir(), "package.json")
	require.NoError(testInstance, os.WriteFile(manifestPath, []byte(content), 0o644))
	return manifestPath
}

func TestEditorAppliesEdits(testInstance *testing.T) {
	manifestPath := writeManifest(testInstance, testManifestConstant)
	editor, creationError := manifest.NewEditor(manifestPath)
	require.NoError(testInstance, creationError)

	require.NoError(testInstance, editor.Apply(manifest.HomepageEdit(".")))
	require.NoError(testInstance, editor.Apply(manifest.DependencyVersionEdit("react-scripts", "5.0.0")))

	document, loadError := manifest.Load(manifestPath)
	require.NoError(testInstance, loadError)
	homepage, _, _ := document.Homepage()
	require.Equal(testInstance, ".", homepage)
	version, _, _ := document.DependencyVersion("react-scripts")
	require.Equal(testInstance, "5.0.0", version)
}

func TestEditorReadsDependencyVersion(testInstance *testing.T) {
	manifestPath := writeManifest(testInstance, testManifestConstant)
	editor, creationError := manifest.NewEditor(manifestPath)
	require.NoError(testInstance, creationError)

	version, versionExists, versionError := editor.DependencyVersion("react-scripts")
	require.NoError(testInstance, versionError)
	require.True(testInstance, versionExists)
	require.Equal(testInstance, "4.0.3", version)

	_, versionExists, versionError = editor.DependencyVersion("vite")
	require.NoError(testInstance, versionError)
	require.False(testInstance, versionExists)

	missingEditor, creationError := manifest.NewEditor(filepath.Join(testInstance.TempDir(), "package.json"))
	require.NoError(testInstance, creationError)
	_, _, versionError = missingEditor.DependencyVersion("react-scripts")
	require.Error(testInstance, versionError)
}

func TestScriptEdit(testInstance *testing.T) {
	testCases := []struct {
		name            string
		scriptName      string
		command         string
		expectUnchanged bool
	}{
		{name: "unchanged_script", scriptName: "build", command: "react-scripts build", expectUnchanged: true},
		{name: "replaced_script", scriptName: "build", command: "react-scripts build && cp build/index.html build/404.html"},
		{name: "added_script", scriptName: "test", command: "react-scripts test"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			manifestPath := writeManifest(testInstance, testManifestConstant)
			editor, creationError := manifest.NewEditor(manifestPath)
			require.NoError(testInstance, creationError)

			require.NoError(testInstance, editor.Apply(manifest.ScriptEdit(testCase.scriptName, testCase.command)))

			content, readError := os.ReadFile(manifestPath)
			require.NoError(testInstance, readError)
			if testCase.expectUnchanged {
				require.Equal(testInstance, testManifestConstant, string(content))
				return
			}

			document, parseError := manifest.Parse(content)
			require.NoError(testInstance, parseError)
			command, scriptExists, scriptError := document.Script(testCase.scriptName)
			require.NoError(testInstance, scriptError)
			require.True(testInstance, scriptExists)
			require.Equal(testInstance, testCase.command, command)
			require.Equal(testInstance, []string{"name", "version", "private", "dependencies", "scripts", "browserslist"}, document.Keys())
		})
	}
}

func TestEditorLeavesFileUntouchedOnFailure(testInstance *testing.T) {
	testCases := []struct {
		name    string
		content string
		edit    manifest.Edit
	}{
		{
			name:    "failing_edit",
			content: testManifestConstant,
			edit: manifest.Edit{Name: "failing", Apply: func(document *manifest.Document) error {
				_ = document.SetHomepage("partial")
				return errors.New("boom")
			}},
		},
		{
			name:    "unparseable_manifest",
			content: `{"name": "sequencer",`,
			edit:    manifest.HomepageEdit("."),
		},
		{
			name:    "nested_field_not_object",
			content: `{"browserslist": "defaults"}`,
			edit:    manifest.BrowserTargetsEdit(manifest.BrowserTargets{Production: []string{"defaults"}}),
		},
		{
			name:    "edit_without_action",
			content: testManifestConstant,
			edit:    manifest.Edit{Name: "empty"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			manifestPath := writeManifest(testInstance, testCase.content)
			editor, creationError := manifest.NewEditor(manifestPath)
			require.NoError(testInstance, creationError)

			require.Error(testInstance, editor.Apply(testCase.edit))

			content, readError := os.ReadFile(manifestPath)
			require.NoError(testInstance, readError)
			require.Equal(testInstance, testCase.content, string(content))
		})
	}
}

func TestNewEditorRequiresPath(testInstance *testing.T) {
	_, creationError := manifest.NewEditor("")
	require.ErrorIs(testInstance, creationError, manifest.ErrManifestPathMissing)
}
