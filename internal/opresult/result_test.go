package opresult_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/toolbump/internal/opresult"
)

func TestResultConstructors(testInstance *testing.T) {
	testCases := []struct {
		name            string
		result          opresult.Result
		expectedSuccess bool
		expectedString  string
	}{
		{
			name:            "succeeded",
			result:          opresult.Succeededf("Backup created for %s", "package.json"),
			expectedSuccess: true,
			expectedString:  "Backup created for package.json",
		},
		{
			name:            "failed_with_output",
			result:          opresult.Failed("install failed", "  npm ERR! code ERESOLVE\n"),
			expectedSuccess: false,
			expectedString:  "install failed\nnpm ERR! code ERESOLVE",
		},
		{
			name:            "failed_without_output",
			result:          opresult.Failedf("no backup at %s", "package.json.backup"),
			expectedSuccess: false,
			expectedString:  "no backup at package.json.backup",
		},
		{
			name:            "with_output",
			result:          opresult.Succeeded("installed").WithOutput("added 1 package\n"),
			expectedSuccess: true,
			expectedString:  "installed\nadded 1 package",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedSuccess, testCase.result.Success)
			require.Equal(testInstance, testCase.expectedString, testCase.result.String())
		})
	}
}
