package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/anirudhraja/protosynth"
	"github.com/anirudhraja/protosynth/wire"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	protoPaths     []string // import roots
	protoFiles     []string // .proto files or directories to load
	descriptorSets []string // serialized FileDescriptorSet files
	configFile     string   // YAML codec configuration
	logLevel       string
	metricsFile    string // write codec metrics here on exit
}

// app carries the state built by the root command for its subcommands.
type app struct {
	flags    globalFlags
	in       io.Reader
	out      io.Writer
	logger   log.Logger
	registry *prometheus.Registry
	proto    *protosynth.Protosynth
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	rootCmd := &cobra.Command{
		Use:   "protosynth",
		Short: "Encode and decode protobuf messages without generated code",
		Long: `protosynth loads message schemas from .proto files or compiled descriptor
sets and converts between JSON and the protobuf wire format.

  protosynth encode --proto user.proto --type app.User < user.json > user.bin
  protosynth decode --proto user.proto --type app.User < user.bin`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.writeMetrics()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringSliceVarP(&a.flags.protoPaths, "proto-path", "I", nil, "directory imports are resolved against (repeatable)")
	pf.StringSliceVarP(&a.flags.protoFiles, "proto", "p", nil, ".proto file or directory to load (repeatable)")
	pf.StringSliceVar(&a.flags.descriptorSets, "descriptor-set", nil, "FileDescriptorSet file to load (repeatable)")
	pf.StringVarP(&a.flags.configFile, "config", "c", "", "YAML codec configuration file")
	pf.StringVar(&a.flags.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	pf.StringVar(&a.flags.metricsFile, "metrics-file", "", "write codec metrics in text exposition format to this file")

	rootCmd.AddCommand(
		newEncodeCmd(a),
		newDecodeCmd(a),
		newListCmd(a),
	)
	return rootCmd
}

func (a *app) setup() error {
	logger, err := newLogger(a.flags.logLevel)
	if err != nil {
		return err
	}
	a.logger = logger

	cfg, err := loadConfig(a.flags.configFile)
	if err != nil {
		return err
	}
	cfg.Logger = log.With(a.logger, "component", "codec")
	a.registry = prometheus.NewRegistry()
	cfg.Metrics = wire.NewMetrics(a.registry)

	a.proto = protosynth.New(a.flags.protoPaths...)
	a.proto.SetConfig(cfg)

	for _, path := range a.flags.protoFiles {
		level.Debug(a.logger).Log("msg", "loading schema", "path", path)
		if err := a.loadProto(path); err != nil {
			return errors.Wrapf(err, "load %s", path)
		}
	}
	for _, path := range a.flags.descriptorSets {
		level.Debug(a.logger).Log("msg", "loading descriptor set", "path", path)
		if err := a.proto.GetRegistry().LoadDescriptorSetFile(path); err != nil {
			return err
		}
	}
	level.Debug(a.logger).Log("msg", "schemas loaded", "messages", len(a.proto.ListMessages()))
	return nil
}

// loadProto loads a directory tree, or a single file whose directory becomes
// an import root when no root covers it.
func (a *app) loadProto(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return a.proto.LoadSchema(path)
	}
	for _, root := range a.flags.protoPaths {
		if rel, ok := strings.CutPrefix(path, strings.TrimSuffix(root, "/")+"/"); ok {
			return a.proto.LoadSchemaFromFile(rel)
		}
	}
	return a.proto.LoadSchemaFromFile(path)
}

func (a *app) writeMetrics() error {
	if a.flags.metricsFile == "" || a.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.flags.metricsFile, a.registry); err != nil {
		return errors.Wrap(err, "write metrics")
	}
	return nil
}

func newLogger(lvl string) (log.Logger, error) {
	var opt level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		opt = level.AllowDebug()
	case "info", "":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		return nil, fmt.Errorf("unknown log level %q", lvl)
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, opt)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller), nil
}

// loadConfig starts from the package configuration, which honors the
// PROTOSYNTH_* environment toggles, and overlays the YAML file if given.
func loadConfig(path string) (wire.Config, error) {
	cfg := wire.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}
