//go:build !darwin && !windows

package main

import (
	"fmt"

	"github.com/nowcast-run/agent/internal/config"
	"github.com/nowcast-run/agent/internal/media"
)

func newMediaSource(cfg *config.Config) (media.Source, error) {
	return nil, fmt.Errorf("no media adaptor for this platform, only darwin and windows are supported")
}
