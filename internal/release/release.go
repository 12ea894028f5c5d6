// Package release loads the optional version label shown next to the app
// title.
package release

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/DoyleJ11/operator-board/internal/source"
	"go.uber.org/zap"
)

type fileConfig struct {
	Version string `json:"version"`
}

// LoadVersion returns the version from the config asset at location. Any
// failure is logged and yields "", which hides the label.
func LoadVersion(ctx context.Context, client *http.Client, location string, logger *zap.Logger) string {
	if location == "" {
		return ""
	}
	data, err := source.Read(ctx, client, location)
	if err != nil {
		logger.Warn("version config unavailable", zap.String("source", location), zap.Error(err))
		return ""
	}
	var cfg fileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		logger.Warn("version config unreadable", zap.String("source", location), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(cfg.Version)
}

func Label(version string) string {
	if version == "" {
		return ""
	}
	return "v" + version
}
