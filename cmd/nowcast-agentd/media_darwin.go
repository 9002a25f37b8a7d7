//go:build darwin

package main

import (
	"github.com/nowcast-run/agent/internal/config"
	"github.com/nowcast-run/agent/internal/media"
)

const (
	darwinDefaultScriptPath    = "/Library/Application Support/nowcast/mediaremote-adapter.pl"
	darwinDefaultFrameworkPath = "/Library/Application Support/nowcast/MediaRemoteAdapter.framework"
)

func newMediaSource(cfg *config.Config) (media.Source, error) {
	scriptPath := cfg.MacHelperScriptPath
	if scriptPath == "" {
		scriptPath = darwinDefaultScriptPath
	}
	frameworkPath := cfg.MacHelperFrameworkPath
	if frameworkPath == "" {
		frameworkPath = darwinDefaultFrameworkPath
	}
	return media.NewSource(scriptPath, frameworkPath), nil
}
