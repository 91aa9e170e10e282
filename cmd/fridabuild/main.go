//
// Tencent is pleased to support the open source community by making fridabuild available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fridabuild is licensed under the Apache License Version 2.0.
//
//

// fridabuild serves the frida agent build API over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/fridabuild/builder"
	"trpc.group/trpc-go/fridabuild/log"
	"trpc.group/trpc-go/fridabuild/server/compile"
	"trpc.group/trpc-go/fridabuild/workspace"
)

// Version is set at build time.
var Version = "dev"

var (
	addr           string
	publicDir      string
	tempRoot       string
	logLevel       string
	packageManager string
	buildTimeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "fridabuild",
	Short: "HTTP build service that compiles frida agents from user-submitted scripts.",
	RunE:  serve,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of fridabuild",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fridabuild version %s\n", Version)
	},
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	rootCmd.Flags().StringVar(&publicDir, "public-dir", "./public",
		"directory the static index page is served from")
	rootCmd.Flags().StringVar(&tempRoot, "temp-root", "",
		"root for per-request build directories (default: system temp dir)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", log.LevelInfo,
		"log level: debug, info, warn, error, fatal")
	rootCmd.Flags().StringVar(&packageManager, "package-manager", "",
		"pin the dependency manager (bun or npm) instead of probing the host")
	rootCmd.Flags().DurationVar(&buildTimeout, "build-timeout", 0,
		"per-command timeout for toolchain invocations (0 disables)")
	rootCmd.AddCommand(versionCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	log.SetLevel(logLevel)

	var buildOpts []builder.Option
	if packageManager != "" {
		buildOpts = append(buildOpts, builder.WithPackageManager(packageManager))
	}
	if buildTimeout > 0 {
		buildOpts = append(buildOpts, builder.WithCommandTimeout(buildTimeout))
	}

	srv := compile.New(
		compile.WithAddr(addr),
		compile.WithPublicDir(publicDir),
		compile.WithBuilder(builder.New(buildOpts...)),
		compile.WithWorkspaceManager(
			workspace.NewManager(workspace.WithTempRoot(tempRoot))),
	)

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Errorf("fridabuild exited: %v", err)
		os.Exit(1)
	}
}
