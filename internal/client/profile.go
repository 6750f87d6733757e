package client

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"collegestar/notes-portal/notes-portal-backend/internal/verification"
)

// flexBool accepts true, "true" and 1 as true. Older records stored the donor
// flag as a string or number.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*b = false
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = flexBool(strings.EqualFold(strings.TrimSpace(s), "true") || strings.TrimSpace(s) == "1")
	default:
		if v, err := strconv.ParseBool(string(data)); err == nil {
			*b = flexBool(v)
			return nil
		}
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return err
		}
		*b = n == 1
	}
	return nil
}

type wireProfile struct {
	ID            string     `json:"id"`
	FullName      string     `json:"full_name"`
	DonorVerified flexBool   `json:"donorVerified"`
	DonorAmount   *float64   `json:"donorAmount"`
	DonorAt       *time.Time `json:"donorAt"`
}

func (w wireProfile) toProfile() *verification.Profile {
	return &verification.Profile{
		ID:            w.ID,
		FullName:      w.FullName,
		DonorVerified: bool(w.DonorVerified),
		DonorAmount:   w.DonorAmount,
		DonorAt:       w.DonorAt,
	}
}
