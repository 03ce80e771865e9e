//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "bin/funnel"

var Default = Build

// Build compiles the funnel binary into bin/.
func Build() error {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	ldflags := fmt.Sprintf("-s -w -X github.com/seuros/funnel/internal/cli.Version=%s", version)
	return sh.RunV("go", "build", "-trimpath", "-ldflags", ldflags, "-o", binary, "./cmd/funnel")
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Integration runs tests that need a local Chrome.
func Integration() error {
	return sh.RunV("go", "test", "-tags", "integration", "./internal/browser/...")
}

// Lint runs go vet.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// CI runs lint and tests.
func CI() {
	mg.SerialDeps(Lint, Test)
}

// Clean removes build output.
func Clean() error {
	return os.RemoveAll("bin")
}
