package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/stock?sslmode=disable", "pgx5://u:p@localhost:5432/stock?sslmode=disable"},
		{"postgresql://localhost/stock", "pgx5://localhost/stock"},
		{"pgx5://localhost/stock", "pgx5://localhost/stock"},
	}
	for _, tt := range tests {
		got, err := DriverURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestDriverURL_RejectsOtherSchemes(t *testing.T) {
	_, err := DriverURL("mysql://localhost/stock")
	assert.Error(t, err)

	_, err = DriverURL("")
	assert.Error(t, err)
}
