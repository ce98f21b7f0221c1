package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-timbre/algorithms/common"
	"github.com/RyanBlaney/sonido-timbre/input/live"
	"github.com/RyanBlaney/sonido-timbre/logging"
	"github.com/RyanBlaney/sonido-timbre/timbre/config"
	"github.com/RyanBlaney/sonido-timbre/timbre/pipeline"
)

var (
	listenDevice      string
	listenListDevices bool
	listenDuration    time.Duration
	listenLowLatency  bool
	listenSelection   string
	listenTrain       int
	listenCSV         string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Classify onsets from a live input device",
	Long: `Captures audio from a PortAudio input device and classifies every onset
with a k-NN model built during the session. Commands typed on stdin control
training (type "help" for the list).`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVarP(&listenDevice, "device", "d", "", "input device name (default system input)")
	listenCmd.Flags().BoolVar(&listenListDevices, "list-devices", false, "list input devices and exit")
	listenCmd.Flags().DurationVarP(&listenDuration, "duration", "t", 0, "stop after this long (default until interrupted)")
	listenCmd.Flags().BoolVar(&listenLowLatency, "low-latency", true, "use the device's low input latency")
	listenCmd.Flags().StringVarP(&listenSelection, "selection", "s", "", "feature selection file (YAML)")
	listenCmd.Flags().IntVar(&listenTrain, "train", pipeline.NoCluster, "start training this class")
	listenCmd.Flags().StringVar(&listenCSV, "csv", "", "also write every vector and prediction to this CSV file")
}

func runListen(cmd *cobra.Command, args []string) error {
	if err := live.Initialize(); err != nil {
		return err
	}
	defer live.Terminate()

	if listenListDevices {
		return printDevices()
	}

	cfg := *appConfig
	if listenDevice != "" {
		cfg.Audio.Device = listenDevice
	}
	cfg.Extraction.Params.NumChannels = cfg.Audio.Channels

	var sel *config.Selection
	if listenSelection != "" {
		var err error
		if sel, err = config.ReadSelection(listenSelection); err != nil {
			return err
		}
	}

	s, err := newSession(cfg, sel, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if listenCSV != "" {
		file, err := os.Create(listenCSV)
		if err != nil {
			return errors.Wrap(err, "could not create CSV file")
		}
		defer file.Close()
		s.worker.AddSink(pipeline.NewCSVSink(file, s.header()))
	}
	if listenTrain >= 0 {
		s.worker.Arm(listenTrain)
	}

	stream, err := live.Open(live.Config{
		Device:     cfg.Audio.Device,
		Channels:   cfg.Audio.Channels,
		SampleRate: cfg.Audio.SampleRate,
		BlockSize:  cfg.Audio.BlockSize,
		LowLatency: listenLowLatency,
	}, s.process)
	if err != nil {
		return err
	}
	defer stream.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if listenDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, listenDuration)
		defer cancel()
	}

	go s.rt.Run(ctx, 20*time.Millisecond)
	go printPredictions(ctx, s.worker.Predictions(), cfg.Classifier.Interval)

	ctl := &controller{worker: s.worker, classifier: s.classifier, clusters: cfg.Classifier.Clusters}
	go ctl.run(ctx, os.Stdin, os.Stdout)

	workerErr := make(chan error, 1)
	go func() { workerErr <- s.worker.Run(ctx) }()

	if err := stream.Start(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "listening, type help for commands, Ctrl-C to stop")

	<-ctx.Done()
	if err := stream.Stop(); err != nil {
		logging.Error(err, "Failed to stop capture stream")
	}

	if err := <-workerErr; err != nil {
		return err
	}
	if err := stream.Err(); err != nil {
		return errors.Wrap(err, "audio processing failed")
	}

	logging.Info("Session finished", logging.Fields{
		"component": "listen",
		"blocks":    stream.Blocks(),
		"onsets":    s.analyzer.Onsets(),
		"vectors":   s.analyzer.Extracted(),
		"skipped":   s.analyzer.Skipped(),
		"instances": s.classifier.Len(),
	})
	return nil
}

func printDevices() error {
	devices, err := live.InputDevices()
	if err != nil {
		return err
	}

	for i, d := range devices {
		fmt.Printf("[%d] %s\n", i, d.Name)
		fmt.Printf("    input channels: %d, default sample rate: %.0f Hz, low latency: %s\n",
			d.MaxInputChannels, d.DefaultSampleRate, d.DefaultLowInputLatency)
	}
	return nil
}

// printPredictions reports every prediction until ctx is done
func printPredictions(ctx context.Context, predictions *common.SPSC[pipeline.Prediction], interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for {
			p, ok := predictions.Pop()
			if !ok {
				break
			}
			fmt.Println(formatPrediction(p))
		}
	}
}

func formatPrediction(p pipeline.Prediction) string {
	switch {
	case p.Trained:
		return fmt.Sprintf("#%d trained as class %d", p.Seq, p.Class)
	case p.Result.ClusterID == pipeline.NoCluster:
		return fmt.Sprintf("#%d onset (no model yet)", p.Seq)
	default:
		return fmt.Sprintf("#%d cluster %d (confidence %.2f, distance %.4g)",
			p.Seq, p.Result.ClusterID, p.Result.Confidence, p.Result.Distance)
	}
}
