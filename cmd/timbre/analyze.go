package main

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-timbre/input"
	"github.com/RyanBlaney/sonido-timbre/input/ffmpeg"
	"github.com/RyanBlaney/sonido-timbre/logging"
	"github.com/RyanBlaney/sonido-timbre/timbre/config"
	"github.com/RyanBlaney/sonido-timbre/timbre/pipeline"
	"github.com/RyanBlaney/sonido-timbre/timbre/windowed"
)

var (
	analyzeOut       string
	analyzeSelection string
	analyzeFit       string
	analyzeFFmpeg    string
	analyzeNormalize bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Write one feature vector per onset of an audio file as CSV",
	Long: `Runs the onset detector over an audio file and writes the feature matrix
taken after every onset as a CSV row. WAV files are read directly, other
formats are decoded with ffmpeg.

With --selection only the named features are written and the stored scaler
is applied. Adding --fit fits a new scaler of the given kind (minmax or
standard) to the selected features and stores it in the selection file.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "CSV output file (default stdout)")
	analyzeCmd.Flags().StringVarP(&analyzeSelection, "selection", "s", "", "feature selection file (YAML)")
	analyzeCmd.Flags().StringVar(&analyzeFit, "fit", "", "fit a scaler (minmax, standard) and store it in the selection file")
	analyzeCmd.Flags().StringVar(&analyzeFFmpeg, "ffmpeg", "ffmpeg", "ffmpeg binary for non-WAV input")
	analyzeCmd.Flags().BoolVar(&analyzeNormalize, "normalize", false, "loudness-normalize non-WAV input")
}

// collectSink keeps every vector for scaler fitting
type collectSink struct {
	rows [][]float64
}

func (c *collectSink) Write(vector []float64, _ pipeline.Prediction) error {
	c.rows = append(c.rows, append([]float64(nil), vector...))
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := *appConfig

	var fitKind windowed.ScalerKind
	if analyzeFit != "" {
		if analyzeSelection == "" {
			return errors.New("--fit needs a --selection file")
		}
		kind, err := windowed.ParseScalerKind(analyzeFit)
		if err != nil {
			return err
		}
		fitKind = kind
	}

	fcfg := ffmpeg.DefaultConfig()
	fcfg.SampleRate = int(cfg.Audio.SampleRate)
	fcfg.Channels = cfg.Audio.Channels
	fcfg.FFmpegPath = analyzeFFmpeg
	fcfg.Normalize = analyzeNormalize

	src, err := input.OpenFile(cmd.Context(), args[0], cfg.Audio.BlockSize, fcfg)
	if err != nil {
		return err
	}
	defer src.Close()

	cfg.Audio.SampleRate = src.SampleRate()
	cfg.Audio.Channels = src.Channels()
	cfg.Extraction.Params.NumChannels = src.Channels()
	if err := cfg.Validate(); err != nil {
		return errors.Wrapf(err, "configuration does not fit %s", args[0])
	}

	var sel *config.Selection
	if analyzeSelection != "" {
		sel, err = config.ReadSelection(analyzeSelection)
		if err != nil {
			return err
		}
		if analyzeFit != "" {
			sel.Scaler = nil
		}
	}

	s, err := newSession(cfg, sel, false)
	if err != nil {
		return err
	}
	defer s.Close()

	var out io.Writer = os.Stdout
	if analyzeOut != "" {
		file, err := os.Create(analyzeOut)
		if err != nil {
			return errors.Wrap(err, "could not create output file")
		}
		defer file.Close()
		out = file
	}
	s.worker.AddSink(pipeline.NewCSVSink(out, s.header()))

	var collected *collectSink
	if analyzeFit != "" {
		collected = &collectSink{}
		s.worker.AddSink(collected)
	}

	start := time.Now()
	blocks, err := processFile(src, s)
	if err != nil {
		return err
	}

	logging.Info("Analysis finished", logging.Fields{
		"component": "analyze",
		"file":      args[0],
		"blocks":    blocks,
		"onsets":    s.analyzer.Onsets(),
		"vectors":   s.analyzer.Extracted(),
		"skipped":   s.analyzer.Skipped(),
		"elapsed":   time.Since(start).String(),
	})

	if collected != nil {
		return storeFittedScaler(analyzeSelection, sel, fitKind, collected.rows)
	}
	return nil
}

// processFile feeds every block of src through the session. Blocks are
// handled synchronously, so the worker is polled after each one.
func processFile(src input.Source, s *session) (int, error) {
	blocks := 0
	for {
		block, err := src.NextBlock()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return blocks, err
		}

		if err := s.process(block); err != nil {
			return blocks, errors.Wrapf(err, "block %d", blocks)
		}
		if _, err := s.worker.Poll(); err != nil {
			return blocks, err
		}
		s.rt.Drain()
		blocks++
	}

	_, err := s.worker.Poll()
	return blocks, err
}

func storeFittedScaler(path string, sel *config.Selection, kind windowed.ScalerKind, rows [][]float64) error {
	if len(rows) == 0 {
		return errors.New("no feature vectors to fit a scaler to")
	}

	var scaler *windowed.Scaler
	var err error
	if kind == windowed.StandardScaling {
		scaler, err = windowed.FitStandard(rows)
	} else {
		scaler, err = windowed.FitMinMax(rows)
	}
	if err != nil {
		return err
	}

	sel.Scaler = &config.ScalerSection{
		Kind:   scaler.Kind,
		Offset: scaler.Offset,
		Factor: scaler.Factor,
	}
	if err := config.WriteSelection(path, sel); err != nil {
		return err
	}

	logging.Info("Scaler stored", logging.Fields{
		"component": "analyze",
		"kind":      kind.String(),
		"vectors":   len(rows),
		"path":      path,
	})
	return nil
}
