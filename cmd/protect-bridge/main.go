/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/carverauto/serviceradar-protect/pkg/bridge"
	"github.com/carverauto/serviceradar-protect/pkg/config"
	"github.com/carverauto/serviceradar-protect/pkg/lifecycle"
	"github.com/carverauto/serviceradar-protect/pkg/logger"
	"github.com/carverauto/serviceradar-protect/pkg/version"
)

const serviceName = "serviceradar-protect"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", "/etc/serviceradar/protect.json", "Path to config file")
	showVersion := pflag.BoolP("version", "v", false, "Print the version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())

		return nil
	}

	ctx := context.Background()

	var cfg bridge.Config
	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	componentLogger, err := lifecycle.CreateComponentLogger("protect-bridge", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	tp, ctx, rootSpan, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		Logger:         componentLogger,
		OTel:           &logConfig.OTel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	defer func() {
		rootSpan.End()

		if err := tp.Shutdown(context.Background()); err != nil {
			componentLogger.Warn().Err(err).Msg("Failed to shut down tracer provider")
		}
	}()

	svc, err := bridge.NewService(&cfg, componentLogger)
	if err != nil {
		return fmt.Errorf("failed to create protect bridge: %w", err)
	}

	componentLogger.Info().
		Str("version", version.GetFullVersion()).
		Str("config", *configPath).
		Int("pid", os.Getpid()).
		Msg("Starting protect bridge")

	return lifecycle.RunService(ctx, &lifecycle.ServiceOptions{
		ServiceName: serviceName,
		Service:     svc,
		Logger:      componentLogger,
	})
}
