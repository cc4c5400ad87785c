// Package main provides build targets for crumbset using Mage.
//
// Usage:
//
//	mage build    Compile the crumbset binary to bin/
//	mage test     Run all tests
//	mage race     Run all tests with the race detector
//	mage cover    Write coverage.out and print per-function coverage
//	mage lint     Run golangci-lint
//	mage clean    Remove build artifacts
//	mage install  Install crumbset to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName   = "crumbset"
	binaryDir    = "bin"
	cmdDir       = "./cmd/crumbset"
	coverProfile = "coverage.out"
	versionVar   = "github.com/mesh-intelligence/crumbset/internal/cli.Version"
)

// Default target when mage is run without arguments.
var Default = Build

// Build compiles the crumbset binary to bin/. VERSION, when set, is stamped
// into the binary.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if v := os.Getenv("VERSION"); v != "" {
		args = append(args, "-ldflags", "-X "+versionVar+"="+v)
	}
	return sh.RunV("go", append(args, cmdDir)...)
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Race runs all tests with the race detector.
func Race() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Cover runs the tests with a coverage profile and prints the summary.
func Cover() error {
	if err := sh.RunV("go", "test", "-coverprofile="+coverProfile, "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func="+coverProfile)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := sh.Rm(coverProfile); err != nil {
		return err
	}
	return sh.RunV("go", "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	return sh.Copy(filepath.Join(gopath, "bin", binaryName), filepath.Join(binaryDir, binaryName))
}
