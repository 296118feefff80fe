// SPDX-FileCopyrightText: Copyright 2025 onshape-part-manager contributors
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the partman command-line application.
package app

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cml1010101/onshape-part-manager/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "partman",
	DisableAutoGenTag: true,
	Short:             "Part manager with an embedded OAuth authorization server",
	Long: `partman serves the team's part-numbering database behind an embedded
OAuth 2.0 authorization server. Users sign in through the upstream identity
provider (Onshape), approve client access on a consent page, and clients
redeem authorization codes for bearer tokens that gate the REST API.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			_ = os.Setenv("DEBUG", "1")
			logger.Initialize()
		}
	},
}

// NewRootCmd creates a new root command for the partman CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)

	return rootCmd
}
