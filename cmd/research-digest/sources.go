// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-digest/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:         "sources",
	Short:       "List the source types that can be used in a task",
	Annotations: map[string]string{noConfig: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		for _, kind := range source.NewDefaultRegistry(source.Deps{}).Kinds() {
			fmt.Println(kind)
		}
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
