//go:build windows

package main

import (
	"github.com/nowcast-run/agent/internal/config"
	"github.com/nowcast-run/agent/internal/media"
)

func newMediaSource(cfg *config.Config) (media.Source, error) {
	return media.NewSource(), nil
}
