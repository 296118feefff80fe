// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the partman command
package main

import (
	"os"

	"github.com/cml1010101/onshape-part-manager/cmd/partman/app"
	"github.com/cml1010101/onshape-part-manager/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
