package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-timbre/timbre/config"
	"github.com/RyanBlaney/sonido-timbre/timbre/windowed"
)

var (
	headerSelection string
	headerJSON      bool
)

var headerCmd = &cobra.Command{
	Use:   "header",
	Short: "Print the feature names of the configured matrix",
	Long: `Prints one "<frame>_<feature>_<component>" name per line, in the order
the values appear in every feature vector. With --selection only the
selected names are printed, after checking they exist.`,
	Args: cobra.NoArgs,
	RunE: runHeader,
}

func init() {
	rootCmd.AddCommand(headerCmd)

	headerCmd.Flags().StringVarP(&headerSelection, "selection", "s", "", "feature selection file (YAML)")
	headerCmd.Flags().BoolVar(&headerJSON, "json", false, "print the geometry and names as JSON")
}

type headerInfo struct {
	VectorSize int      `json:"vector_size"`
	BufferSize int      `json:"buffer_size"`
	FramesRes  int      `json:"frames_res"`
	OutputSize int      `json:"output_size"`
	Names      []string `json:"names"`
}

func runHeader(cmd *cobra.Command, args []string) error {
	agg, err := windowed.New(appConfig.Windowed())
	if err != nil {
		return err
	}

	names := agg.Header()
	if headerSelection != "" {
		sel, err := config.ReadSelection(headerSelection)
		if err != nil {
			return err
		}
		if err := sel.Apply(agg); err != nil {
			return err
		}
		names = agg.FeatureFilter().Names()
	}

	if headerJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(headerInfo{
			VectorSize: agg.VectorSize(),
			BufferSize: agg.BufferSize(),
			FramesRes:  agg.FramesRes(),
			OutputSize: agg.OutputSize(),
			Names:      names,
		})
	}

	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
