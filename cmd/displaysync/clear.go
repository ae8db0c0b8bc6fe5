package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Tear down the daemon's bus-facing display",
	Long: `Tear down the template shown on the daemon's bus-facing surface.

If no other render target still shows the template, the daemon releases its
synchronization group immediately.`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	if err := client.ClearDisplay(); err != nil {
		return err
	}
	fmt.Println("cleared")
	return nil
}
