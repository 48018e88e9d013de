package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lk2023060901/danmu-online-go/application"
	"github.com/lk2023060901/danmu-online-go/pkg/util/paramtable"
)

// runApp 启动应用并阻塞到退出，测试中可替换。
var runApp = func(ctx context.Context, configPath string) error {
	return application.New(application.WithConfigPath(configPath)).Run(ctx)
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "online-server",
		Short:         "Online presence service",
		Long:          "online-server tracks which users are online through login, heartbeat and logout calls, and expires sessions that stop sending heartbeats.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file path, falls back to $"+paramtable.ConfigFileEnv+" then ./"+paramtable.DefaultConfigFile)

	serve := func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runApp(ctx, configPath)
	}
	rootCmd.RunE = serve

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server (default)",
			RunE:  serve,
		},
		newVersionCmd(),
	)

	return rootCmd
}
