// Package upi builds UPI payment deep links and the QR codes that carry them.
package upi

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/skip2/go-qrcode"
)

// Payee identifies who receives a UPI payment.
type Payee struct {
	VPA      string `json:"vpa"`
	Name     string `json:"name"`
	Note     string `json:"note"`
	Currency string `json:"currency"`
}

// Link returns a upi://pay deep link for amount (whole currency units).
func Link(p Payee, amount int) string {
	currency := p.Currency
	if currency == "" {
		currency = "INR"
	}
	params := url.Values{}
	params.Set("pa", p.VPA)
	params.Set("pn", p.Name)
	params.Set("am", strconv.Itoa(amount))
	params.Set("cu", currency)
	if p.Note != "" {
		params.Set("tn", p.Note)
	}
	return "upi://pay?" + params.Encode()
}

// TerminalQR renders link as a QR code made of block characters.
func TerminalQR(link string) (string, error) {
	code, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr: %w", err)
	}
	return code.ToSmallString(false), nil
}

// PNG renders link as a size x size PNG.
func PNG(link string, size int) ([]byte, error) {
	return qrcode.Encode(link, qrcode.Medium, size)
}
