package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hudumalabs/storefront-pay/app/factory"
	"github.com/hudumalabs/storefront-pay/app/gateway"
	"github.com/hudumalabs/storefront-pay/config"
)

var rootCmd = &cobra.Command{
	Use:   "storefront-pay",
	Short: "Storefront payment flow toolkit",
	Long:  "Drives mobile-money purchase flows against the order gateway and ships a sandbox gateway for development.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := factory.ConfigureLogging(cfg.Log); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func newGatewayClient(cfg *config.Config) *gateway.Client {
	return gateway.NewClient(gateway.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		AuthToken:   cfg.Gateway.AuthToken,
		HTTPTimeout: cfg.Gateway.HTTPTimeout,
	})
}
