package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hudumalabs/storefront-pay/app/entity"
	"github.com/hudumalabs/storefront-pay/app/flow"
	"github.com/hudumalabs/storefront-pay/app/gateway"
)

var (
	purchaseServiceID string
	purchasePhone     string
	purchaseProof     string
	purchaseManual    bool
)

var purchaseCmd = &cobra.Command{
	Use:   "purchase",
	Short: "Drive a full purchase flow from the terminal",
	Long:  "Opens a payment flow for a catalog service, submits the payment, and follows the confirmation countdown until the attempt succeeds or fails.",
	Run:   runPurchase,
}

func init() {
	rootCmd.AddCommand(purchaseCmd)

	purchaseCmd.Flags().StringVar(&purchaseServiceID, "service", "", "Catalog service id to purchase")
	purchaseCmd.Flags().StringVar(&purchasePhone, "phone", "", "Payment phone number")
	purchaseCmd.Flags().BoolVar(&purchaseManual, "manual", false, "Pay via manual transfer instead of push")
	purchaseCmd.Flags().StringVar(&purchaseProof, "proof", "", "Transfer confirmation message (manual payments)")
	_ = purchaseCmd.MarkFlagRequired("service")
	_ = purchaseCmd.MarkFlagRequired("phone")
}

func runPurchase(_ *cobra.Command, _ []string) {
	cfg := mustLoadConfig()
	client := newGatewayClient(cfg)
	logger := logrus.WithField("module", "purchase-cmd")

	ctx := context.Background()
	service, err := resolveService(ctx, client, purchaseServiceID)
	if err != nil {
		logger.WithError(err).Fatal("Failed to resolve service")
	}

	f := flow.New(client, cfg.Flow)

	succeeded := make(chan string, 1)
	closed := make(chan struct{}, 1)
	f.OnSuccess(func(orderID string) { succeeded <- orderID })
	f.OnClose(func() { closed <- struct{}{} })
	f.OnCountdown(func(seconds int) {
		if seconds%10 == 0 || seconds <= 5 {
			logger.WithField("seconds_left", seconds).Info("Awaiting payment confirmation")
		}
	})

	if err := f.Open(ctx, service); err != nil {
		logger.WithError(err).Fatal("Failed to open payment flow")
	}

	if f.State() == entity.StateMethodSelect {
		method := entity.MethodUSSD
		if purchaseManual {
			method = entity.MethodManual
		}
		if err := f.SelectMethod(method); err != nil {
			logger.WithError(err).Fatal("Failed to select payment method")
		}
	}

	switch f.State() {
	case entity.StatePhoneEntry:
		if settings, ok := f.Settings(); ok && purchaseManual && !settings.ManualEnabled {
			logger.Warn("Manual payments are disabled, falling back to push")
		}
		err = f.SubmitPush(ctx, purchasePhone)
	case entity.StateManualEntry:
		if settings, ok := f.Settings(); ok {
			logger.WithFields(logrus.Fields{
				"payout_phone": settings.ManualPayoutPhone,
				"payout_name":  settings.ManualPayoutName,
			}).Info(settings.ManualInstructions)
		}
		err = f.SubmitManual(ctx, purchasePhone, purchaseProof)
	default:
		logger.WithField("state", f.State()).Fatal("Flow opened in an unexpected state")
	}
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			logger.Fatal(apiErr.Message)
		}
		logger.WithError(err).Fatal("Submission failed")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	poll := time.NewTicker(250 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case orderID := <-succeeded:
			logger.WithField("order_id", orderID).Info("Payment confirmed")
			_ = f.ConfirmClose()
			<-closed
			return
		case <-poll.C:
			if f.State() == entity.StateFailed {
				logger.Error("Payment was not confirmed")
				_ = f.Close()
				os.Exit(1)
			}
		case <-quit:
			logger.Info("Cancelling purchase")
			if err := f.ConfirmClose(); err != nil {
				logger.WithError(err).Fatal("Flow cannot be closed right now")
			}
			<-closed
			return
		}
	}
}

func resolveService(ctx context.Context, client *gateway.Client, serviceID string) (entity.Service, error) {
	services, err := client.ListServices(ctx)
	if err != nil {
		return entity.Service{}, err
	}
	for _, service := range services {
		if service.ID == serviceID {
			return service, nil
		}
	}
	return entity.Service{}, errors.New("service not found in catalog: " + serviceID)
}
