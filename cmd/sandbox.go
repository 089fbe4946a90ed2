package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hudumalabs/storefront-pay/app/sandbox"
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Serve the in-memory sandbox gateway",
	Long:  "Start an HTTP gateway backed by an in-memory store, with simulated push-payment confirmation, for local development and testing.",
	Run:   runSandbox,
}

func init() {
	rootCmd.AddCommand(sandboxCmd)
}

func runSandbox(_ *cobra.Command, _ []string) {
	cfg := mustLoadConfig()

	store := sandbox.NewStore(cfg.Sandbox)
	controller := sandbox.NewController(store, cfg.Sandbox)

	e := setupSandboxServer(controller)

	go func() {
		addr := net.JoinHostPort(cfg.Sandbox.Host, cfg.Sandbox.Port)
		logrus.WithField("addr", addr).Info("Starting sandbox gateway")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Sandbox server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Sandbox shutdown error")
	}
	logrus.Info("Sandbox stopped")
}

func setupSandboxServer(controller *sandbox.Controller) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip": v.RemoteIP,
				"method":    v.Method,
				"uri":       v.URI,
				"status":    v.Status,
				"latency":   v.Latency.String(),
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	controller.Register(e)
	return e
}
