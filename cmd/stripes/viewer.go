package main

import (
	"fmt"
	"os/exec"
	"runtime"
)

// viewerCommand is swapped in tests.
var viewerCommand = func(path string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		return exec.Command("xdg-open", path)
	}
}

// showImage hands the file to the platform viewer without waiting for it.
func showImage(path string) error {
	cmd := viewerCommand(path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start viewer: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
