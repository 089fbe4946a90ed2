package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the service catalog",
	Run:   runServices,
}

func init() {
	rootCmd.AddCommand(servicesCmd)
}

func runServices(_ *cobra.Command, _ []string) {
	cfg := mustLoadConfig()
	client := newGatewayClient(cfg)

	services, err := client.ListServices(context.Background())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to list services")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tCURRENCY")
	for _, service := range services {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", service.ID, service.Name, service.Price, service.Currency)
	}
	_ = w.Flush()
}
