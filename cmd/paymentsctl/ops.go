package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/database"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/events"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/provider"
	"github.com/wekeepgrowing/order-payments/internal/infrastructure/settings"
	"github.com/wekeepgrowing/order-payments/internal/usecase"
	"github.com/wekeepgrowing/order-payments/pkg/logger"
	"github.com/wekeepgrowing/order-payments/pkg/messaging"
	"go.uber.org/zap"
)

// runtime is the slice of the server's wiring the operator commands need.
type runtime struct {
	payments *usecase.PaymentService
	logger   *zap.Logger
	close    []func() error
}

func (r *runtime) Close() {
	for i := len(r.close) - 1; i >= 0; i-- {
		if err := r.close[i](); err != nil {
			r.logger.Warn("Cleanup failed", zap.Error(err))
		}
	}
	_ = r.logger.Sync()
}

func bootstrap() (*runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	rt := &runtime{logger: log.With(zap.String("component", "paymentsctl"))}

	db, err := database.NewConnection(&cfg.Database, rt.logger)
	if err != nil {
		return nil, err
	}
	rt.close = append(rt.close, func() error { return database.Close(db, rt.logger) })
	repos := database.NewRepositories(db, rt.logger)

	runtimeSettings, err := settings.Load(cfg.Settings, rt.logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	// transitions made here reach the order domain like any other
	var publisher usecase.EventPublisher = events.NewLogPublisher(rt.logger)
	if cfg.Redis.Enabled {
		client, err := messaging.NewRedisClient(messaging.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		rt.close = append(rt.close, client.Close)
		publisher = events.NewRedisPublisher(client, cfg.Redis.EventsChannel, rt.logger)
	}

	registry, err := provider.NewFactory(&cfg.Payments, runtimeSettings, rt.logger).NewRegistry()
	if err != nil {
		rt.Close()
		return nil, err
	}
	transitions := usecase.NewTransitioner(repos.Payment, repos.Order, publisher, nil, rt.logger)
	rt.payments = usecase.NewPaymentService(
		repos.Payment, repos.Order, repos.CustomerMapping,
		registry, runtimeSettings, transitions, cfg.Payments, nil, rt.logger,
	)
	return rt, nil
}

func expireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire pending payments whose QR code or cash window has lapsed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := rt.payments.ExpireStalePayments(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d payment(s)\n", n)
			return nil
		},
	}
}

func confirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm [payment-id]",
		Short: "Approve a pix or cash payment verified out of band",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, _ := cmd.Flags().GetString("actor")
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.Close()

			payment, err := rt.payments.ConfirmManualPayment(context.Background(), args[0], actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (order %s)\n", payment.ID, payment.Status, payment.OrderID)
			return nil
		},
	}
	cmd.Flags().String("actor", "paymentsctl", "Operator recorded as confirmed_by")
	return cmd
}

func refundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refund [payment-id]",
		Short: "Refund an approved payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, _ := cmd.Flags().GetString("actor")
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.Close()

			payment, err := rt.payments.RefundPayment(context.Background(), args[0], actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", payment.ID, payment.Status)
			return nil
		},
	}
	cmd.Flags().String("actor", "paymentsctl", "Operator recorded as refunded_by")
	return cmd
}
