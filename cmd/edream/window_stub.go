//go:build !gl

package main

import (
	"context"
	"errors"

	"github.com/coreman2200/edream/internal/config"
	"github.com/coreman2200/edream/internal/sequence"
)

const windowSupported = false

func runWindow(context.Context, *config.Store, sequence.Playlist, playOptions) error {
	return errors.New("window output needs a build with -tags gl")
}
