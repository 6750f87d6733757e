package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"collegestar/notes-portal/notes-portal-backend/internal/verification"
	"collegestar/notes-portal/notes-portal-backend/pkg/upi"
)

// retryGrace is how long the timeout notice stays up before the payment is
// offered again.
var retryGrace = 5 * time.Second

type verifyOptions struct {
	amount   int
	device   string
	markPaid bool
	interval time.Duration
	timeout  time.Duration
}

func verifyCmd(opts *options) *cobra.Command {
	vo := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Show the payment and wait for the supporter badge",
		RunE: func(cmd *cobra.Command, args []string) error {
			if vo.device != "handheld" && vo.device != "desktop" {
				return fmt.Errorf("unknown device %q, want handheld or desktop", vo.device)
			}
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runVerify(ctx, cmd.OutOrStdout(), s, vo)
		},
	}
	cmd.Flags().IntVarP(&vo.amount, "amount", "a", 50, "donation amount in INR")
	cmd.Flags().StringVar(&vo.device, "device", "desktop", "handheld opens the UPI link, desktop prints a QR code")
	cmd.Flags().BoolVar(&vo.markPaid, "mark-paid", false, "report the payment as completed before waiting")
	cmd.Flags().DurationVar(&vo.interval, "interval", verification.DefaultConfig().Interval, "time between profile checks")
	cmd.Flags().DurationVar(&vo.timeout, "timeout", verification.DefaultConfig().Timeout, "how long to wait for confirmation")
	return cmd
}

func runVerify(ctx context.Context, out io.Writer, s *session, vo *verifyOptions) error {
	link, err := s.client.PaymentLink(ctx, vo.amount)
	if err != nil {
		return fmt.Errorf("failed to get payment link: %w", err)
	}
	if err := presentPayment(out, vo.device, link); err != nil {
		return err
	}

	if vo.markPaid {
		if _, err := s.client.ClaimDonation(ctx, vo.amount); err != nil {
			return fmt.Errorf("failed to report payment: %w", err)
		}
		fmt.Fprintln(out, "Payment reported. Waiting for confirmation...")
	}

	poller := verification.NewPoller(s.client, s.flags, verification.NewScheduler(),
		verification.Config{Interval: vo.interval, Timeout: vo.timeout},
		verification.WithLogger(s.logger),
		verification.WithListener(func(snap verification.Session) {
			if snap.Status == verification.StatusPending {
				fmt.Fprintf(out, "Checking every %s for up to %s\n", snap.Interval, snap.Timeout)
			}
		}),
	)
	defer poller.Stop()

	status := poller.Start(ctx)
	if status == verification.StatusPending {
		status, err = poller.Wait(ctx)
		if err != nil {
			return err
		}
	}

	switch status {
	case verification.StatusVerified:
		user, err := s.client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		if err := s.flags.Set(verification.DonorFlagKey(user.ID), "true"); err != nil {
			return fmt.Errorf("failed to remember donor flag: %w", err)
		}
		fmt.Fprintln(out, "Thank you! Your supporter badge is active.")
		return nil

	case verification.StatusTimeout:
		fmt.Fprintln(out, "We could not confirm your payment yet. Offering it again shortly...")
		select {
		case <-time.After(retryGrace):
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := presentPayment(out, vo.device, link); err != nil {
			return err
		}
		fmt.Fprintln(out, "Run verify again once the payment has gone through.")
		return errors.New("payment not confirmed")

	default:
		msg := poller.Snapshot().ErrorMessage
		if msg == "" {
			msg = string(status)
		}
		if msg == verification.ErrNotAuthenticated.Error() {
			msg += " (run donation-verifier login first)"
		}
		return errors.New(msg)
	}
}

// presentPayment opens the deep link on a handheld device and renders it as a
// QR code elsewhere.
func presentPayment(out io.Writer, device, link string) error {
	if device == "handheld" {
		fmt.Fprintf(out, "Open this link in your UPI app:\n%s\n", link)
		return nil
	}
	qr, err := upi.TerminalQR(link)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Scan with any UPI app:\n%s\n%s\n", qr, link)
	return nil
}
