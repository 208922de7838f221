// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"rivaas.dev/logging"
)

const serviceName = "guardd"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	config    string
	logFormat string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:          serviceName,
		Short:        "Validate uploads and request parameters against a declarative rule set",
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if _, err := parseLevel(flags.logLevel); err != nil {
				return err
			}
			switch flags.logFormat {
			case "json", "console", "text":
				return nil
			default:
				return fmt.Errorf("invalid log format: %s (valid: json, console, text)", flags.logFormat)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "guard.yaml", "path to the validator configuration (YAML, TOML or JSON)")
	pf.StringVar(&flags.logFormat, "log-format", "json", "log output format: json, console or text")
	pf.StringVar(&flags.logLevel, "log-level", "info", "minimum log level: debug, info, warn or error")

	root.AddCommand(newCheckCmd(flags), newServeCmd(flags))

	return root
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level: %s", s)
	}

	return level, nil
}

// newLogger builds the process logger. The returned func flushes and
// releases it.
func newLogger(flags *globalFlags) (*slog.Logger, func(context.Context) error, error) {
	level, err := parseLevel(flags.logLevel)
	if err != nil {
		return nil, nil, err
	}

	opts := []logging.Option{
		logging.WithServiceName(serviceName),
		logging.WithLevel(level),
		logging.WithOutput(os.Stderr),
	}
	switch flags.logFormat {
	case "console":
		opts = append(opts, logging.WithConsoleHandler())
	case "text":
		opts = append(opts, logging.WithTextHandler())
	default:
		opts = append(opts, logging.WithJSONHandler())
	}

	lg, err := logging.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return lg.Logger(), lg.Shutdown, nil
}
