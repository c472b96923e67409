/*
Copyright © 2024 the qdoas-engine authors.
This file is part of qdoas-engine.

qdoas-engine is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

qdoas-engine is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with qdoas-engine.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cmd contains the qdoas-engine command-line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configFile string

// RootCmd is the main command.
var RootCmd = &cobra.Command{
	Use:   "qdoas-engine",
	Short: "A DOAS spectral analysis engine.",
	Long: `qdoas-engine fits slant column densities of trace gases from
measured spectra against a set of configured analysis windows.
Use the subcommands specified below to access its functionality.`,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configFile, "project", "./project.toml", "project file location")
	RootCmd.AddCommand(versionCmd)
}

const version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("qdoas-engine v%s\n", version)
	},
}
