package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/socinabox/modwatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetColorLabel(t *testing.T) {
	for _, kind := range schema.AllChangeKinds {
		t.Run(string(kind), func(t *testing.T) {
			assert.Contains(t, GetColorLabel(kind), string(kind))
		})
	}
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "report.txt")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestHasAcceptedExtension(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		extensions []string
		want       bool
	}{
		{"ruby module", "ms17_010_eternalblue.rb", schema.DefaultExtensions, true},
		{"markdown doc", "ms17_010_eternalblue.md", schema.DefaultExtensions, true},
		{"upper case extension", "README.MD", schema.DefaultExtensions, true},
		{"python helper", "exploit.py", schema.DefaultExtensions, false},
		{"no extension", "Makefile", schema.DefaultExtensions, false},
		{"empty list accepts all", "exploit.py", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasAcceptedExtension(tt.file, tt.extensions))
		})
	}
}

func TestGetDBFilePaths(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	cachePath := GetCacheDBFilePath()
	assert.Contains(t, cachePath, ".modwatch_cache.db")
	assert.True(t, strings.HasPrefix(cachePath, homeDir))

	historyPath := GetHistoryDBFilePath()
	assert.Contains(t, historyPath, ".modwatch_history.db")
	assert.NotEqual(t, cachePath, historyPath)
}

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		maxWidth int
		expected string
	}{
		{"fits", "modules/post/a.rb", 40, "modules/post/a.rb"},
		{"truncated", "modules/exploits/windows/smb/x.rb", 12, ".../smb/x.rb"},
		{"width too small", "modules/post/a.rb", 3, "modules/post/a.rb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TruncatePath(tt.path, tt.maxWidth))
		})
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1", " true "} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b ,"))
	assert.Nil(t, SplitList(""))
}
