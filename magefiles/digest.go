//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Digest groups targets that drive the built CLI against the local
// configuration (CONFIG overrides the default search path).
type Digest mg.Namespace

func cliArgs(args ...string) []string {
	if cfg := os.Getenv("CONFIG"); cfg != "" {
		args = append(args, "--config", cfg)
	}
	return args
}

// Validate checks the configuration and prints its tasks.
func (Digest) Validate() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), cliArgs("validate")...)
}

// Run executes every task once.
func (Digest) Run() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), cliArgs("run")...)
}

// Daemon runs every task on its schedule until interrupted.
func (Digest) Daemon() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), cliArgs("daemon", "--run-now")...)
}
