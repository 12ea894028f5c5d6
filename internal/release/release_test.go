package release

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoadVersion(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	cases := []struct {
		name     string
		location string
		want     string
		warns    int
	}{
		{name: "present", location: write("ok.json", `{"version": " 1.4.2 "}`), want: "1.4.2"},
		{name: "field absent", location: write("absent.json", `{"name": "x"}`), want: ""},
		{name: "malformed", location: write("bad.json", `{"version":`), want: "", warns: 1},
		{name: "missing file", location: filepath.Join(dir, "nope.json"), want: "", warns: 1},
		{name: "no source configured", location: "", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			got := LoadVersion(context.Background(), nil, tc.location, zap.New(core))
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.warns, logs.Len())
		})
	}
}

func TestLoadVersion_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/data/config.json" {
			_, _ = w.Write([]byte(`{"version":"2.0"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Equal(t, "2.0", LoadVersion(context.Background(), srv.Client(), srv.URL+"/data/config.json", zap.NewNop()))
	assert.Equal(t, "", LoadVersion(context.Background(), srv.Client(), srv.URL+"/broken", zap.NewNop()))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "v1.4.2", Label("1.4.2"))
	assert.Equal(t, "", Label(""))
}
