package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-timbre/algorithms/spectral"
	"github.com/RyanBlaney/sonido-timbre/algorithms/windowing"
	"github.com/RyanBlaney/sonido-timbre/input"
	"github.com/RyanBlaney/sonido-timbre/input/ffmpeg"
)

var (
	spectrumAt     float64
	spectrumSize   int
	spectrumWindow string
	spectrumType   string
	spectrumDB     bool
)

var spectrumCmd = &cobra.Command{
	Use:   "spectrum <file>",
	Short: "Print the spectrum of one frame of an audio file",
	Long: `Reads the frame of --size samples starting at --at seconds on the
configured channel, applies the window function and prints bin, frequency
and value for every bin.`,
	Args: cobra.ExactArgs(1),
	RunE: runSpectrum,
}

func init() {
	rootCmd.AddCommand(spectrumCmd)

	spectrumCmd.Flags().Float64Var(&spectrumAt, "at", 0, "frame start in seconds")
	spectrumCmd.Flags().IntVar(&spectrumSize, "size", 1024, "frame size in samples")
	spectrumCmd.Flags().StringVar(&spectrumWindow, "window", "hann", "window function")
	spectrumCmd.Flags().StringVar(&spectrumType, "type", "power", "power or magnitude")
	spectrumCmd.Flags().BoolVar(&spectrumDB, "db", false, "print values in dB")
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	kind, err := spectral.ParseSpectrumType(spectrumType)
	if err != nil {
		return err
	}
	winType, err := windowing.ParseType(spectrumWindow)
	if err != nil {
		return err
	}
	win, err := windowing.New(winType, spectrumSize)
	if err != nil {
		return err
	}
	if spectrumAt < 0 {
		return errors.Errorf("invalid frame start: %g s", spectrumAt)
	}

	fcfg := ffmpeg.DefaultConfig()
	fcfg.SampleRate = int(appConfig.Audio.SampleRate)
	src, err := input.OpenFile(cmd.Context(), args[0], appConfig.Audio.BlockSize, fcfg)
	if err != nil {
		return err
	}
	defer src.Close()

	channel := appConfig.Audio.Channel
	if channel >= src.Channels() {
		return errors.Errorf("channel %d not in a %d channel file", channel, src.Channels())
	}

	start := int(math.Round(spectrumAt * src.SampleRate()))
	frame, err := readFrame(src, channel, start, spectrumSize)
	if err != nil {
		return err
	}
	if err := win.ApplyInPlace(frame); err != nil {
		return err
	}

	values := spectral.ReferenceSpectrum(frame, kind)
	conv := spectral.BinConverter{WindowSize: spectrumSize, SampleRate: src.SampleRate()}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "bin\tfreq_hz\tvalue")
	for bin, value := range values {
		if spectrumDB {
			value = toDB(value, kind)
		}
		fmt.Fprintf(w, "%d\t%.1f\t%.6g\n", bin, conv.BinToFreq(bin), value)
	}
	return w.Flush()
}

// readFrame collects size samples of channel starting at sample start. Samples
// past the end of the file are zero.
func readFrame(src input.Source, channel, start, size int) ([]float64, error) {
	frame := make([]float64, size)
	pos := 0

	for pos < start+size {
		block, err := src.NextBlock()
		if errors.Is(err, io.EOF) {
			if pos <= start {
				return nil, errors.Errorf("frame start %d beyond the end of the file (%d samples)", start, pos)
			}
			break
		}
		if err != nil {
			return nil, err
		}

		for i, x := range block[channel] {
			if idx := pos + i - start; idx >= 0 && idx < size {
				frame[idx] = x
			}
		}
		pos += len(block[channel])
	}

	return frame, nil
}

func toDB(value float64, kind spectral.SpectrumType) float64 {
	const floor = 1e-20
	if kind == spectral.SpectrumPower {
		return 10 * math.Log10(math.Max(value, floor))
	}
	return 20 * math.Log10(math.Max(value, floor))
}
