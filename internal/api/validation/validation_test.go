package validation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", DefaultLimit, false},
		{"limit=1", 1, false},
		{"limit=100", 100, false},
		{"limit=0", 0, true},
		{"limit=101", 0, true},
		{"limit=-3", 0, true},
		{"limit=abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := ParseLimit(httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil))
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLimit_ErrorDetails(t *testing.T) {
	_, err := ParseLimit(httptest.NewRequest(http.MethodGet, "/x?limit=500", nil))
	require.Error(t, err)

	details := GetValidationErrorDetails(err)
	require.Len(t, details, 1)
	assert.Equal(t, "limit", details[0].Location)
	assert.Equal(t, "limit must be less than or equal to 100", details[0].Message)
}

func TestParsePathID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.SetPathValue("id", "42")

	id, err := ParsePathID(req, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-1", "1.5", "abc", "99999999999999999999"} {
		req.SetPathValue("id", bad)

		_, err := ParsePathID(req, "id")
		assert.Error(t, err, bad)
	}
}

func TestRespondValidationError(t *testing.T) {
	_, err := ParseLimit(httptest.NewRequest(http.MethodGet, "/x?limit=0", nil))
	require.Error(t, err)

	rec := httptest.NewRecorder()
	RespondValidationError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "greater than or equal to 1")
}
