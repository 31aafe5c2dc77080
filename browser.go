package main

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openBrowser launches the user's default browser at the given URL. Used as
// the openURL callback for the browser login flow; on failure the flow
// prints the URL for manual opening, so errors here are non-fatal.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	// Detach: the browser outlives the CLI process.
	return cmd.Process.Release()
}
