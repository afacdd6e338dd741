package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeID(t *testing.T) {
	require.Equal(t, "App/Welcome", NormalizeID(`App\Welcome`))
	require.Equal(t, "App/Welcome", NormalizeID("App/Welcome"))
	require.Equal(t, "a/b/c", NormalizeID(`a\b/c`))
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"single segment", "App", true},
		{"nested", "App/Welcome", true},
		{"backslash", `App\Welcome`, true},
		{"empty", "", false},
		{"whitespace", "App Welcome", false},
		{"tab", "App\tWelcome", false},
		{"leading delimiter", "/App", false},
		{"trailing delimiter", "App/", false},
		{"doubled delimiter", "App//Welcome", false},
		{"doubled mixed delimiter", `App/\Welcome`, false},
		{"dot segment", "App/./Welcome", false},
		{"parent segment", "App/../../secrets", false},
		{"parent backslash", `..\App`, false},
		{"dots inside segment", "App/v1..2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidRegistration)
		})
	}
}

func TestSegments(t *testing.T) {
	require.Equal(t, []string{"Bucket", "Cache", "Store"}, Segments(`Bucket\Cache/Store`))
}
