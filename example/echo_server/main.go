package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	websocket "github.com/ohmymind/WebSocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var (
		configPath string
		port       int
		path       string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:   "echo_server",
		Short: "Echo every websocket message back to its sender",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := websocket.DefaultConfig()
			if configPath != "" {
				var err error
				if cfg, err = websocket.LoadConfig(configPath); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("path") {
				cfg.Path = path
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := websocket.SetLogLevel(cfg.LogLevel); err != nil {
				return err
			}

			srv := websocket.NewServer(cfg)
			srv.OnConnect(handConn)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().IntVarP(&port, "port", "p", websocket.DefaultPort, "listen port")
	cmd.Flags().StringVar(&path, "path", "/", "upgrade path")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}

func handConn(c *websocket.Conn) {
	c.SetMessageHandler(func(c *websocket.Conn, msg websocket.Message) {
		logrus.Infof("receive data: %v", msg.Payload())
		if err := c.Send(msg.Payload()); err != nil {
			logrus.Errorf("send: %v", err)
		}
	})
	c.SetCloseHandler(func(c *websocket.Conn, ev websocket.CloseEvent) {
		logrus.Infof("close: %d %s", ev.Code, ev.Reason)
	})
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
