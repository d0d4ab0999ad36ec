package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var dbPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tourctl",
		Short: "Inspect devices, models and property tours",
		Long: `tourctl - offline tools for the tour engine

Classify a device, print render profiles, inspect 3D models headlessly
and query or import property tours in the SQLite store.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "./data/tour.db", "Path to the SQLite property store")

	root.AddCommand(
		newClassifyCmd(),
		newProfileCmd(),
		newInspectCmd(),
		newPathCmd(),
		newImportCmd(),
		newFloorplanCmd(),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
