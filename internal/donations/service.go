package donations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"collegestar/notes-portal/notes-portal-backend/internal/profiles"
	"collegestar/notes-portal/notes-portal-backend/pkg/pdf"
	"collegestar/notes-portal/notes-portal-backend/pkg/upi"
)

var (
	ErrInvalidAmount = errors.New("amount is not an offered donation tier")
	ErrForbidden     = errors.New("cannot act on another user's donation")
	ErrNotDonor      = errors.New("no donation recorded for this profile")
)

// notifyTimeout bounds the best-effort notification fan-out.
const notifyTimeout = 10 * time.Second

// ProfileStore is the part of the profile service donations need.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*profiles.Profile, error)
	RecordDonation(ctx context.Context, id string, amount float64) (*profiles.Profile, error)
}

type Service struct {
	profiles ProfileStore
	notifier Notifier
	receipts pdf.Generator
	payee    upi.Payee
	tiers    []int
	logger   *zap.Logger
}

func NewService(p ProfileStore, notifier Notifier, receipts pdf.Generator, payee upi.Payee, tiers []int, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &Service{
		profiles: p,
		notifier: notifier,
		receipts: receipts,
		payee:    payee,
		tiers:    slices.Clone(tiers),
		logger:   logger,
	}
}

// Tiers returns the offered amounts in ascending order.
func (s *Service) Tiers() []int {
	out := slices.Clone(s.tiers)
	slices.Sort(out)
	return out
}

func (s *Service) validTier(amount int) bool {
	return slices.Contains(s.tiers, amount)
}

// PaymentLink returns the UPI deep link for an offered amount.
func (s *Service) PaymentLink(amount int) (string, error) {
	if !s.validTier(amount) {
		return "", ErrInvalidAmount
	}
	return upi.Link(s.payee, amount), nil
}

// PaymentQR renders the deep link for amount as a PNG.
func (s *Service) PaymentQR(amount, size int) ([]byte, error) {
	link, err := s.PaymentLink(amount)
	if err != nil {
		return nil, err
	}
	return upi.PNG(link, size)
}

// Claim records that the caller says they paid. Nothing verifies the payment;
// admins are notified so it can be checked by hand. Notification failures are
// logged and never fail the claim.
func (s *Service) Claim(ctx context.Context, callerID, profileID string, amount int) (*profiles.Profile, error) {
	if callerID != profileID {
		return nil, ErrForbidden
	}
	if !s.validTier(amount) {
		return nil, ErrInvalidAmount
	}

	p, err := s.profiles.RecordDonation(ctx, profileID, float64(amount))
	if err != nil {
		return nil, err
	}

	at := time.Now().UTC()
	if p.DonorAt != nil {
		at = *p.DonorAt
	}
	claim := Claim{
		UserID:   p.ID,
		Email:    p.Email,
		FullName: p.FullName,
		Amount:   amount,
		Currency: s.currency(),
		At:       at,
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.DonationClaimed(notifyCtx, claim); err != nil {
		s.logger.Warn("Donation notification failed", zap.String("user_id", p.ID), zap.Error(err))
	}

	s.logger.Info("Donation claimed", zap.String("user_id", p.ID), zap.Int("amount", amount))
	return p, nil
}

// Receipt renders a PDF receipt for the caller's recorded donation.
func (s *Service) Receipt(ctx context.Context, callerID, profileID string) (io.ReadSeeker, error) {
	if callerID != profileID {
		return nil, ErrForbidden
	}
	p, err := s.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !p.DonorVerified || p.DonorAmount == nil {
		return nil, ErrNotDonor
	}

	paidAt := p.UpdatedAt
	if p.DonorAt != nil {
		paidAt = *p.DonorAt
	}
	return s.receipts.Receipt(ctx, pdf.Receipt{
		Number:     receiptNumber(p.ID, paidAt),
		DonorName:  p.FullName,
		DonorEmail: p.Email,
		Amount:     *p.DonorAmount,
		Currency:   s.currency(),
		PaidAt:     paidAt,
		Payee:      s.payee.Name,
	})
}

func (s *Service) currency() string {
	if s.payee.Currency == "" {
		return "INR"
	}
	return s.payee.Currency
}

func receiptNumber(userID string, at time.Time) string {
	suffix := userID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("CS-%s-%s", at.Format("20060102"), strings.ToUpper(suffix))
}
