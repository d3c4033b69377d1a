package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvr-ai/go-kws/benchmark"
	"github.com/nvr-ai/go-kws/config"
	"github.com/nvr-ai/go-kws/detector"
	"github.com/nvr-ai/go-kws/inference"
	"github.com/nvr-ai/go-kws/models"
	"github.com/nvr-ai/go-kws/models/model"
	"github.com/nvr-ai/go-kws/models/postprocess"
	"github.com/nvr-ai/go-kws/util"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// env is the state shared by the commands, built in Before.
type env struct {
	cfg config.Config
	log *logrus.Logger
	reg *prometheus.Registry
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	e := &env{}
	return &cli.App{
		Name:      "kws",
		Usage:     "keyword spotting decisions over quantized classifier scores",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML configuration file",
				EnvVars: []string{"KWS_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "preset",
				Usage: "calibration preset (" + presetNames() + "), overrides the configuration",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level, overrides the configuration",
			},
		},
		Before: e.before,
		Commands: []*cli.Command{
			{
				Name:      "decide",
				Usage:     "decide score vectors given with --scores or one per stdin line",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "scores",
						Usage: "one comma separated int8 score vector, e.g. --scores=-128,-128,90,...",
					},
					&cli.BoolFlag{
						Name:  "rank",
						Usage: "list every label with its score after the decision",
					},
				},
				Action: e.decide,
			},
			{
				Name:  "threshold",
				Usage: "derive the int8 threshold for a probability",
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:     "probability",
						Aliases:  []string{"p"},
						Usage:    "minimum keyword probability in [0, 1]",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  "scale",
						Usage: "output scale, defaults to the calibration's",
					},
					&cli.IntFlag{
						Name:  "zero-point",
						Usage: "output zero point, defaults to the calibration's",
					},
				},
				Action: e.threshold,
			},
			{
				Name:  "eval",
				Usage: "evaluate a directory of labeled sample files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dir",
						Usage:    "directory of <label>-<index>.bin|.txt files",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "input",
						Value: string(benchmark.InputScores),
						Usage: "sample kind: scores or features (features run the ONNX model)",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "directory to save JSON and CSV results to",
					},
				},
				Action: e.eval,
			},
			{
				Name:      "run",
				Usage:     "run quantized feature files through the ONNX model",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "model",
						Usage: "ONNX model path, overrides the configuration",
					},
					&cli.StringFlag{
						Name:  "dir",
						Usage: "directory of .bin|.txt feature files to run in name order, any file names",
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "serve prometheus metrics on this address while running",
					},
				},
				Action: e.run,
			},
		},
	}
}

func (e *env) before(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if preset := c.String("preset"); preset != "" {
		cfg.Model.Preset = model.Name(preset)
	}
	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.NewLogger(c.App.ErrWriter)
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.log = logger
	e.reg = prometheus.NewRegistry()
	return nil
}

func (e *env) decide(c *cli.Context) error {
	cal, err := e.cfg.Calibration()
	if err != nil {
		return err
	}
	decider, err := postprocess.NewDecider(cal)
	if err != nil {
		return err
	}

	lines := []string{c.String("scores")}
	if !c.IsSet("scores") {
		lines = nil
		scanner := bufio.NewScanner(c.App.Reader)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrap(err, "reading scores")
		}
	}

	w := c.App.Writer
	for n, line := range lines {
		scores, err := util.ParseInt8s(line)
		if err != nil {
			return errors.Wrapf(err, "vector %d", n+1)
		}
		decision, err := decider.Decide(scores)
		if err != nil {
			return errors.Wrapf(err, "vector %d", n+1)
		}
		fmt.Fprintln(w, decision)

		if c.Bool("rank") {
			ranked, err := decider.Rank(scores)
			if err != nil {
				return err
			}
			for _, r := range ranked {
				marker := ""
				if r.Reserved {
					marker = " (reserved)"
				}
				fmt.Fprintf(w, "  %2d %-10s %4d %.4f%s\n", r.Index, r.Label, r.Score, r.Confidence, marker)
			}
		}
	}
	return nil
}

func (e *env) threshold(c *cli.Context) error {
	cal, err := e.cfg.Calibration()
	if err != nil {
		return err
	}

	output := cal.Output
	if c.IsSet("scale") {
		output.Scale = float32(c.Float64("scale"))
	}
	if c.IsSet("zero-point") {
		output.ZeroPoint = int32(c.Int("zero-point"))
	}
	if err := output.Validate(); err != nil {
		return err
	}

	p := c.Float64("probability")
	if p < 0 || p > 1 {
		return errors.Errorf("probability must be in [0, 1], got %v", p)
	}

	threshold := output.ThresholdFromProbability(float32(p))
	fmt.Fprintf(c.App.Writer, "%d\n", threshold)
	e.log.WithFields(logrus.Fields{
		"probability":  p,
		"quantization": output.String(),
		"threshold":    threshold,
	}).Debug("threshold derived")
	return nil
}

func (e *env) eval(c *cli.Context) error {
	cal, err := e.cfg.Calibration()
	if err != nil {
		return err
	}
	input := benchmark.InputKind(c.String("input"))

	var engine inference.Engine
	if input == benchmark.InputFeatures {
		session, err := inference.NewSession(e.cfg.Session(), cal)
		if err != nil {
			return err
		}
		engine = session
	}

	det, err := detector.New(detector.Config{
		Calibration: cal,
		Engine:      engine,
		Logger:      e.log,
	})
	if err != nil {
		if engine != nil {
			engine.Close()
		}
		return err
	}
	defer det.Close()

	suite, err := benchmark.NewSuite(benchmark.NewSuiteArgs{
		Detector: det,
		Input:    input,
		Logger:   e.log,
	})
	if err != nil {
		return err
	}

	dir := c.String("dir")
	samples, err := util.LoadDirectorySamples(dir)
	if err != nil {
		return errors.Wrapf(err, "loading samples from %s", dir)
	}

	report, err := suite.Run(c.Context, filepath.Base(dir), samples)
	if err != nil {
		return err
	}
	if err := report.WriteSummary(c.App.Writer); err != nil {
		return err
	}

	if out := c.String("output"); out != "" {
		if _, err := suite.SaveResults(out); err != nil {
			return err
		}
	}
	return nil
}

func (e *env) run(c *cli.Context) error {
	cfg := e.cfg
	if path := c.String("model"); path != "" {
		cfg.Model.Path = path
	}

	files := c.Args().Slice()
	if dir := c.String("dir"); dir != "" {
		listed, err := util.ListSampleFiles(dir)
		if err != nil {
			return errors.Wrapf(err, "listing features in %s", dir)
		}
		files = append(files, listed...)
	}
	if len(files) == 0 {
		return errors.New("no feature files given")
	}

	cal, err := cfg.Calibration()
	if err != nil {
		return err
	}
	session, err := inference.NewSession(cfg.Session(), cal)
	if err != nil {
		return err
	}

	w := c.App.Writer
	det, err := detector.New(detector.Config{
		Calibration: cal,
		Engine:      session,
		Cooldown:    cfg.Detector.Cooldown,
		Logger:      e.log,
		Metrics:     cfg.Metrics.New(e.reg),
		Sink: detector.SinkFunc(func(ctx context.Context, event detector.Event) error {
			_, err := fmt.Fprintf(w, "%s keyword %q (confidence %.4f)\n",
				event.At.Format(time.RFC3339), event.Decision.Label, event.Decision.Confidence)
			return err
		}),
	})
	if err != nil {
		session.Close()
		return err
	}
	defer det.Close()

	if addr := c.String("metrics-addr"); addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				e.log.WithError(err).Error("metrics server failed")
			}
		}()
		defer srv.Close()
	}

	for _, path := range files {
		features, err := util.LoadSample(path)
		if err != nil {
			return err
		}
		event, err := det.DetectQuantized(c.Context, features)
		if err != nil {
			return errors.Wrapf(err, "running %s", path)
		}
		e.log.WithFields(logrus.Fields{
			"path":     path,
			"decision": event.Decision.String(),
			"took":     event.Took,
		}).Debug("features processed")
	}

	e.log.WithField("reported", det.EventCount()).Info("run completed")
	return nil
}

// presetNames lists the registered presets for help output.
func presetNames() string {
	names := models.Presets()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return strings.Join(out, ", ")
}
