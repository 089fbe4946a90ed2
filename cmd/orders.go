package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List placed orders",
	Run:   runOrders,
}

func init() {
	rootCmd.AddCommand(ordersCmd)
}

func runOrders(_ *cobra.Command, _ []string) {
	cfg := mustLoadConfig()
	client := newGatewayClient(cfg)

	orders, err := client.ListOrders(context.Background())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to list orders")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVICE\tMETHOD\tNETWORK\tPAYMENT\tORDER STATUS\tCREATED")
	for _, order := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			order.ID, order.ServiceName, order.Method, order.PaymentNetwork,
			order.PaymentStatus, order.OrderStatus, order.CreatedAt)
	}
	_ = w.Flush()
}
