// Command tensordecode replays recorded model output tensors through the decoder,
// printing one JSON snapshot per frame and optionally rendering overlays.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nvr-ai/go-tensordecode/aggregator"
	"github.com/nvr-ai/go-tensordecode/config"
	"github.com/nvr-ai/go-tensordecode/controller"
	"github.com/nvr-ai/go-tensordecode/images"
	"github.com/nvr-ai/go-tensordecode/logger"
	"github.com/nvr-ai/go-tensordecode/models"
	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/nvr-ai/go-tensordecode/overlay"
	"github.com/nvr-ai/go-tensordecode/pipeline"
	"github.com/nvr-ai/go-tensordecode/profiler"
	"github.com/nvr-ai/go-tensordecode/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

func main() {
	var (
		configPath string
		dumpDir    string
		outputDir  string
		trackHead  string
		envFile    string
		maskEyes   bool
		maxTargets int
	)
	flag.StringVar(&configPath, "config", "tensordecode.yaml", "Path to the YAML configuration")
	flag.StringVar(&dumpDir, "dumps", "", "Directory of frame-<N>.<head>.<index>.bin tensor dumps")
	flag.StringVar(&outputDir, "output", "", "Directory to write overlay frames to (disabled when empty)")
	flag.StringVar(&trackHead, "track", "", "Detection head whose largest target drives the servo")
	flag.StringVar(&envFile, "env", "", "Optional dotenv file with TENSORDECODE_* overrides")
	flag.BoolVar(&maskEyes, "mask-eyes", false, "Cover the eyes of tracked faces using the pose heads")
	flag.IntVar(&maxTargets, "max-targets", controller.DefaultMaxTargets, "Leading detections of the track head considered for the servo target")
	flag.Parse()

	if dumpDir == "" {
		fmt.Fprintln(os.Stderr, "missing -dumps")
		flag.Usage()
		os.Exit(2)
	}

	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, dumpDir, outputDir, trackHead, maskEyes, maxTargets); err != nil {
		log.WithError(err).Fatal("replay failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger, dumpDir, outputDir, trackHead string, maskEyes bool, maxTargets int) error {
	heads, err := models.NewHeads(cfg.Heads)
	if err != nil {
		return err
	}
	for _, h := range heads {
		log.WithFields(logrus.Fields{
			logger.FieldHead: h.Name(),
			"kind":           h.Kind(),
			"resolution":     h.Resolution().String(),
		}).Info("head loaded")
	}

	frames, err := util.LoadDirectoryTensorFrames(dumpDir)
	if err != nil {
		return err
	}
	log.WithField("frames", len(frames)).Info("replaying tensor dumps")

	prof := profiler.New(0)
	agg := aggregator.New(cfg.Exclude...)
	for _, h := range cfg.Heads {
		agg.ExcludeFor(h.Name, h.Exclude...)
	}
	p := pipeline.New(heads, agg, pipeline.Options{Logger: log, Profiler: prof})

	scalers := make(map[string]images.Scaler, len(heads))
	var poseHeads []string
	for _, h := range heads {
		scalers[h.Name()] = images.NewScaler(h.Resolution(), cfg.Video)
		if h.Kind() == model.KindPose {
			poseHeads = append(poseHeads, h.Name())
		}
	}

	var servo *controller.Controller
	if trackHead != "" {
		s, ok := scalers[trackHead]
		if !ok {
			return errors.Errorf("unknown track head %q", trackHead)
		}
		servo = &controller.Controller{
			Head:       trackHead,
			Scaler:     s,
			MaxTargets: maxTargets,
			Servo:      controller.NewServo(controller.DefaultServoConfig()),
		}
	}

	renderer := &overlay.Renderer{Scalers: scalers, MinKeypointScore: 0.5}
	if maskEyes && trackHead != "" {
		renderer.Mask = &overlay.EyeMask{FaceHead: trackHead, PoseHeads: poseHeads, LeftEye: 1, RightEye: 2}
	}

	enc := json.NewEncoder(os.Stdout)
	for _, tf := range frames {
		snap, err := p.Process(ctx, pipeline.Frame{
			Index:     uint64(tf.Frame),
			Timestamp: time.Now(),
			Tensors:   tf.Tensors,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if err := enc.Encode(snap); err != nil {
			return err
		}

		highlight := map[string]int{}
		if servo != nil {
			if cmd, ok := servo.Update(snap); ok {
				highlight[trackHead] = cmd.Index
				log.WithFields(logrus.Fields{
					logger.FieldFrame: tf.Frame,
					"pan":             cmd.Pan,
					"tilt":            cmd.Tilt,
				}).Info("servo")
			}
		}

		if outputDir != "" {
			renderer.Highlight = highlight
			if err := render(renderer, cfg.Video, tf, snap, outputDir); err != nil {
				log.WithError(err).WithField(logger.FieldFrame, tf.Frame).Warn("overlay failed")
			}
		}
	}

	prof.Report(log)
	return nil
}

func render(r *overlay.Renderer, video images.Resolution, tf util.TensorFrame, snap *pipeline.Snapshot, outputDir string) error {
	var img gocv.Mat
	if tf.ImagePath != "" {
		read, err := overlay.ReadImage(tf.ImagePath, video)
		if err != nil {
			return err
		}
		img = read
	} else {
		img = overlay.Blank(video)
	}
	defer img.Close()

	if err := r.Draw(&img, snap); err != nil {
		return err
	}
	return overlay.WriteImage(filepath.Join(outputDir, fmt.Sprintf("frame-%d.png", tf.Frame)), img)
}
