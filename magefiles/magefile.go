//go:build mage

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "savegames"

// Default target to run when none is specified
var Default = Build

// Build builds the binary
func Build() error {
	fmt.Println("Building...")
	return sh.Run("go", "build", "-o", binary, "./cmd/"+binary)
}

// Test runs all tests
func Test() error {
	fmt.Println("Running tests...")
	return sh.Run("go", "test", "-race", "-coverprofile=coverage.out", "./...")
}

// TestForFail runs the unit tests purely to find out whether any fail
func TestForFail() error {
	fmt.Println("Running unit tests for overall pass/fail...")
	return run(
		context.Background(),
		"go",
		"test",
		"-timeout=60s",
		"./...",
		"-failfast",
		"-shuffle=on",
		"-race",
	)
}

// Browser runs the save browser specs with ginkgo's reporter
func Browser() error {
	fmt.Println("Running save browser specs...")
	return run(context.Background(), "go", "run", "github.com/onsi/ginkgo/v2/ginkgo", "-r", "--randomize-all", "./internal/tui")
}

// Lint lints the codebase
func Lint() error {
	fmt.Println("Linting...")
	return run(context.Background(), "golangci-lint", "run", "./...")
}

// CheckNils checks for nils
func CheckNils() error {
	fmt.Println("Running check for nils...")
	return run(context.Background(), "nilaway", "./...")
}

// CheckForFail runs all checks on the code for determining whether any fail
func CheckForFail() error {
	fmt.Println("Checking for failures...")
	mg.SerialDeps(Lint, TestForFail, CheckNils)
	return nil
}

// Clean removes build artifacts
func Clean() error {
	fmt.Println("Cleaning...")
	for _, path := range []string{binary, "coverage.out", "coverage.html"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Install installs the binary
func Install() error {
	fmt.Println("Installing...")
	return sh.Run("go", "install", "./cmd/"+binary)
}

// Fmt formats the code
func Fmt() error {
	fmt.Println("Formatting code...")
	return sh.Run("gofmt", "-s", "-w", ".")
}

// Check runs all checks (fmt, lint, test)
func Check() error {
	mg.SerialDeps(Fmt, Lint, Test, CheckNils)
	return nil
}

// Coverage generates the HTML coverage report
func Coverage() error {
	if err := Test(); err != nil {
		return err
	}
	fmt.Println("Generating coverage report...")
	return sh.Run("go", "tool", "cover", "-html=coverage.out", "-o", "coverage.html")
}

// Helper function to run commands with context
func run(c context.Context, command string, arg ...string) error {
	cmd := exec.CommandContext(c, command, arg...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
