package main

import (
	"context"
	"errors"
	"os"

	"github.com/MimeLyc/video-note/internal/apperror"
)

func main() {
	cmd, cleanup := newRootCommand()
	err := cmd.Execute()
	cleanup()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			apperror.NewDefaultHandler().Handle(err)
		}
		os.Exit(1)
	}
}
