package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/toolbump/internal/manifest"
)

const testManifestConstant = `{
  "name": "sequencer",
  "version": "0.1.0",
  "private": true,
  "dependencies": {
    "react": "^17.0.2",
    "react-scripts": "4.0.3",
    "tone": "^14.7.77"
  },
  "scripts": {
    "start": "react-scripts start",
    "build": "react-scripts build"
  },
  "browserslist": {
    "production": [
      ">0.2%"
    ],
    "development": [
      "last 1 chrome version"
    ]
  }
}
`

func TestParseAndMarshalPreservesDocument(testInstance *testing.T) {
	document, parseError := manifest.Parse([]byte(testManifestConstant))
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, []string{"name", "version", "private", "dependencies", "scripts", "browserslist"}, document.Keys())

	content, marshalError := document.Marshal()
	require.NoError(testInstance, marshalError)
	require.Equal(testInstance, testManifestConstant, string(content))
}

func TestParseRejectsInvalidDocuments(testInstance *testing.T) {
	testCases := []struct {
		name          string
		content       string
		expectedError error
	}{
		{name: "array_root", content: `["react"]`, expectedError: manifest.ErrNotAnObject},
		{name: "trailing_data", content: `{"name":"sequencer"} {}`, expectedError: manifest.ErrTrailingData},
		{name: "truncated", content: `{"name":`},
		{name: "empty", content: ``},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, parseError := manifest.Parse([]byte(testCase.content))
			require.Error(testInstance, parseError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, parseError, testCase.expectedError)
			}
		})
	}
}

func TestParseDuplicateKeysKeepFirstPositionAndLastValue(testInstance *testing.T) {
	document, parseError := manifest.Parse([]byte(`{"name":"a","version":"1","name":"b"}`))
	require.NoError(testInstance, parseError)

	content, marshalError := document.Marshal()
	require.NoError(testInstance, marshalError)
	require.Equal(testInstance, "{\n  \"name\": \"b\",\n  \"version\": \"1\"\n}\n", string(content))
}

func TestFieldEditsPreserveOrder(testInstance *testing.T) {
	document, parseError := manifest.Parse([]byte(testManifestConstant))
	require.NoError(testInstance, parseError)

	require.NoError(testInstance, document.SetHomepage("https://example.github.io/sequencer"))
	require.NoError(testInstance, document.SetDependencyVersion("react-scripts", "5.0.1"))
	require.NoError(testInstance, document.SetScript("build", "react-scripts build && cp build/index.html build/404.html"))
	require.NoError(testInstance, document.SetBrowserTargets(manifest.BrowserTargets{
		Production:  []string{">0.2%", "not dead", "not op_mini all"},
		Development: []string{"last 1 chrome version"},
	}))

	content, marshalError := document.Marshal()
	require.NoError(testInstance, marshalError)
	require.Equal(testInstance, `{
  "name": "sequencer",
  "version": "0.1.0",
  "private": true,
  "dependencies": {
    "react": "^17.0.2",
    "react-scripts": "5.0.1",
    "tone": "^14.7.77"
  },
  "scripts": {
    "start": "react-scripts start",
    "build": "react-scripts build && cp build/index.html build/404.html"
  },
  "browserslist": {
    "production": [
      ">0.2%",
      "not dead",
      "not op_mini all"
    ],
    "development": [
      "last 1 chrome version"
    ]
  },
  "homepage": "https://example.github.io/sequencer"
}
`, string(content))

	homepage, homepageExists, homepageError := document.Homepage()
	require.NoError(testInstance, homepageError)
	require.True(testInstance, homepageExists)
	require.Equal(testInstance, "https://example.github.io/sequencer", homepage)

	version, versionExists, versionError := document.DependencyVersion("react-scripts")
	require.NoError(testInstance, versionError)
	require.True(testInstance, versionExists)
	require.Equal(testInstance, "5.0.1", version)

	buildScript, scriptExists, scriptError := document.Script("build")
	require.NoError(testInstance, scriptError)
	require.True(testInstance, scriptExists)
	require.Contains(testInstance, buildScript, "404.html")

	browserTargets, targetsExist, targetsError := document.BrowserTargets()
	require.NoError(testInstance, targetsError)
	require.True(testInstance, targetsExist)
	require.Len(testInstance, browserTargets.Production, 3)
}

func TestSetDependencyVersionUsesDevelopmentSectionWhenListedThere(testInstance *testing.T) {
	document, parseError := manifest.Parse([]byte(`{"devDependencies":{"react-scripts":"4.0.3"}}`))
	require.NoError(testInstance, parseError)

	require.NoError(testInstance, document.SetDependencyVersion("react-scripts", "5.0.0"))
	require.False(testInstance, document.Has(manifest.DependenciesField))

	version, versionExists, versionError := document.DependencyVersion("react-scripts")
	require.NoError(testInstance, versionError)
	require.True(testInstance, versionExists)
	require.Equal(testInstance, "5.0.0", version)
}

func TestSetBrowserTargetsRejectsNonObjectSpecification(testInstance *testing.T) {
	document, parseError := manifest.Parse([]byte(`{"browserslist":[">0.2%"]}`))
	require.NoError(testInstance, parseError)

	require.Error(testInstance, document.SetBrowserTargets(manifest.BrowserTargets{}))
}

func TestSetDoesNotEscapeHTML(testInstance *testing.T) {
	document := manifest.NewDocument()
	require.NoError(testInstance, document.SetScript("build", "react-scripts build && echo <done>"))

	content, marshalError := document.Marshal()
	require.NoError(testInstance, marshalError)
	require.Contains(testInstance, string(content), "&& echo <done>")
}

func TestDeleteRemovesField(testInstance *testing.T) {
	document, parseError := manifest.Parse([]byte(`{"name":"a","homepage":".","version":"1"}`))
	require.NoError(testInstance, parseError)

	document.Delete(manifest.HomepageField)
	document.Delete("absent")
	require.Equal(testInstance, []string{"name", "version"}, document.Keys())
}

func TestSaveWritesCompleteDocument(testInstance *testing.T) {
	manifestPath := filepath.Join(testInstance.TempDir(), "package.json")
	require.NoError(testInstance, os.WriteFile(manifestPath, []byte(testManifestConstant), 0o600))

	document, loadError := manifest.Load(manifestPath)
	require.NoError(testInstance, loadError)
	require.NoError(testInstance, document.Save(manifestPath))

	content, readError := os.ReadFile(manifestPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, testManifestConstant, string(content))

	fileInfo, statError := os.Stat(manifestPath)
	require.NoError(testInstance, statError)
	require.Equal(testInstance, os.FileMode(0o600), fileInfo.Mode().Perm())
}
