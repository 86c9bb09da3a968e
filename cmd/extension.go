package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

const (
	EnvEnvFile = "FINNTRA_ENV_FILE"
	EnvVerbose = "FINNTRA_VERBOSE"
)

// RunExtension attempts to find and execute an external finntra-<subcommand> binary.
// It returns (true, exitCode) if an extension was found and executed,
// and (false, 0) if no extension was found.
func RunExtension(subcommand string, args []string) (bool, int) {
	name := "finntra-" + subcommand

	lp, err := exec.LookPath(name)
	if err != nil {
		if *Verbose {
			log.Printf("External command %q not found in PATH: %v", name, err)
		}
		return false, 0
	}

	cmd := exec.Command(lp, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = extensionEnv(os.Environ())

	if err := cmd.Run(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
				return true, status.ExitStatus()
			}
		}
		fmt.Fprintf(os.Stderr, "Error executing external command %q: %v\n", name, err)
		return true, 1
	}
	return true, 0
}

// extensionEnv passes the global flags to an extension as environment variables.
func extensionEnv(environ []string) []string {
	return append(environ,
		EnvEnvFile+"="+*envFile,
		EnvVerbose+"="+strconv.FormatBool(*Verbose),
	)
}
