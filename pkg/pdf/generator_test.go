package pdf

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceipt(t *testing.T) {
	gen := NewGenerator("CollegeStar")

	rs, err := gen.Receipt(context.Background(), Receipt{
		Number:     "CS-1",
		DonorName:  "Asha",
		DonorEmail: "asha@example.com",
		Amount:     100,
		Currency:   "INR",
		PaidAt:     time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
		Payee:      "collegestar@upi",
	})
	require.NoError(t, err)

	body, err := io.ReadAll(rs)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))
}
