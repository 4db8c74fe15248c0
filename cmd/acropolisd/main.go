// Copyright 2026 Blink Labs Software
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
	"os/signal"
	"syscall"

	"github.com/blinklabs-io/acropolis/internal/config"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/blinklabs-io/acropolis/internal/pipeline"
	"github.com/blinklabs-io/acropolis/internal/version"

	"github.com/spf13/cobra"
)

const (
	programName = "acropolisd"
)

var cmdlineFlags = struct {
	debug      bool
	configPath string
}{}

func main() {
	cmd := &cobra.Command{
		Use: fmt.Sprintf("%s [flags]", programName),
		Run: cmdRun,
	}

	cmd.Flags().BoolVarP(&cmdlineFlags.debug, "debug", "D", false, "enable debug logging")
	cmd.Flags().StringVarP(&cmdlineFlags.configPath, "config", "c", "", "path to config file")

	if err := cmd.Execute(); err != nil {
		// NOTE: we purposely don't display the error, since cobra will have already displayed it
		os.Exit(1)
	}
}

func cmdRun(_ *cobra.Command, _ []string) {
	logger := configureLogger()
	slog.SetDefault(logger)
	slog.Info(fmt.Sprintf("starting %s %s", programName, version.GetVersionString()))

	cfg, err := config.Load(cmdlineFlags.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// A bare genesis: a real deployment seeds these from the network's
	// genesis files (byron-genesis.json/shelley-genesis.json's initial
	// reserves and protocol-parameter block). That loader is out of
	// scope here; nothing downstream depends on non-zero genesis values
	// to run correctly, only to match the real chain's numbers.
	genesis := pipeline.Genesis{
		Pots:              model.Pots{},
		Parameters:        model.ParameterUpdate{},
		GovActionLifetime: 6,
		DRepActivity:      20,
		ProtocolVersion:   9,
	}

	p, err := pipeline.New(cfg, genesis, logger)
	if err != nil {
		slog.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p.Start(ctx)
	go logPipelineErrors(ctx, p)

	slog.Info("pipeline running; awaiting blocks on the configured upstream chain fetcher")
	<-ctx.Done()
	slog.Info("shutting down")
}

// logPipelineErrors drains the bus's error channel until ctx is
// cancelled. An error on that channel is fatal to replay: it is logged
// at Error level and the process exits with status 1.
func logPipelineErrors(ctx context.Context, p *pipeline.Pipeline) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-p.Errors():
			if !ok {
				return
			}
			slog.Error("pipeline error", "error", err)
			os.Exit(1)
		}
	}
}

func configureLogger() *slog.Logger {
	if cmdlineFlags.debug {
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	}
	return slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}),
	)
}
