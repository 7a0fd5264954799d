package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionHandler(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		gitCommit   string
		buildDate   string
		wantVersion string
		wantCommit  string
		wantDate    string
	}{
		{name: "with all values", version: "0.3.0", gitCommit: "abc123", buildDate: "2025-01-05T12:00:00Z",
			wantVersion: "0.3.0", wantCommit: "abc123", wantDate: "2025-01-05T12:00:00Z"},
		{name: "with defaults", wantVersion: "dev", wantCommit: "unknown", wantDate: "unknown"},
		{name: "with partial values", version: "1.0.0", buildDate: "2025-01-05T12:00:00Z",
			wantVersion: "1.0.0", wantCommit: "unknown", wantDate: "2025-01-05T12:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			VersionHandler(tt.version, tt.gitCommit, tt.buildDate).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp versionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tt.wantVersion, resp.Version)
			require.Equal(t, tt.wantCommit, resp.GitCommit)
			require.Equal(t, tt.wantDate, resp.BuildDate)
			require.Equal(t, runtime.Version(), resp.GoVersion)
		})
	}
}
