package donations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collegestar/notes-portal/notes-portal-backend/internal/middleware"
	"collegestar/notes-portal/notes-portal-backend/internal/profiles"
	"collegestar/notes-portal/notes-portal-backend/pkg/pdf"
	"collegestar/notes-portal/notes-portal-backend/pkg/token"
	"collegestar/notes-portal/notes-portal-backend/pkg/upi"
)

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) DonationClaimed(ctx context.Context, claim Claim) error {
	return m.Called(ctx, claim).Error(0)
}

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	return &sns.PublishOutput{}, args.Error(0)
}

type MockSES struct {
	mock.Mock
}

func (m *MockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	return &sesv2.SendEmailOutput{}, args.Error(0)
}

var testPayee = upi.Payee{VPA: "collegestar@upi", Name: "CollegeStar", Note: "Support", Currency: "INR"}

type fixture struct {
	profiles profiles.Service
	notifier *MockNotifier
	svc      *Service
	user     *profiles.Profile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ps := profiles.NewService(profiles.NewMemoryRepository(), zap.NewNop())
	user, err := ps.Create(context.Background(), profiles.CreateRequest{Email: "asha@example.com", PasswordHash: "h", FullName: "Asha"})
	require.NoError(t, err)

	n := new(MockNotifier)
	return &fixture{
		profiles: ps,
		notifier: n,
		svc:      NewService(ps, n, pdf.NewGenerator("CollegeStar"), testPayee, []int{20, 50, 70, 100, 200, 500}, zap.NewNop()),
		user:     user,
	}
}

func TestClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Claim(ctx, "intruder", f.user.ID, 50)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Claim(ctx, f.user.ID, f.user.ID, 55)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	f.notifier.On("DonationClaimed", mock.Anything, mock.MatchedBy(func(c Claim) bool {
		return c.UserID == f.user.ID && c.Amount == 50 && c.Currency == "INR" && c.Email == "asha@example.com"
	})).Return(errors.New("sns down")).Once()

	p, err := f.svc.Claim(ctx, f.user.ID, f.user.ID, 50)
	require.NoError(t, err)
	assert.True(t, p.DonorVerified)
	assert.Equal(t, 50.0, *p.DonorAmount)
	f.notifier.AssertExpectations(t)

	stored, err := f.profiles.GetProfile(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, stored.DonorVerified)
}

func TestPaymentLink(t *testing.T) {
	f := newFixture(t)
	link, err := f.svc.PaymentLink(100)
	require.NoError(t, err)
	assert.Equal(t, upi.Link(testPayee, 100), link)
	assert.Contains(t, link, "am=100")

	_, err = f.svc.PaymentLink(0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	png, err := f.svc.PaymentQR(20, 128)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))
}

func TestReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Receipt(ctx, f.user.ID, f.user.ID)
	assert.ErrorIs(t, err, ErrNotDonor)

	f.notifier.On("DonationClaimed", mock.Anything, mock.Anything).Return(nil)
	_, err = f.svc.Claim(ctx, f.user.ID, f.user.ID, 200)
	require.NoError(t, err)

	_, err = f.svc.Receipt(ctx, "other", f.user.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	doc, err := f.svc.Receipt(ctx, f.user.ID, f.user.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "%PDF"))
}

func TestReceiptNumber(t *testing.T) {
	at := time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "CS-20240815-ABCDEF", receiptNumber("0123abcdef", at))
	assert.Equal(t, "CS-20240815-U1", receiptNumber("u1", at))
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	f.notifier.On("DonationClaimed", mock.Anything, mock.Anything).Return(nil)
	tokens := token.NewManager("secret", "collegestar", time.Hour)
	bearer, err := tokens.Issue(f.user.ID, f.user.Email)
	require.NoError(t, err)

	r := gin.New()
	NewHandler(f.svc, zap.NewNop()).RegisterRoutes(r.Group("/api"), middleware.RequireAuth(tokens))

	do := func(method, path, body string, auth bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if auth {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodGet, "/api/donations/tiers", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tiers":[20,50,70,100,200,500],"currency":"INR"}`, w.Body.String())

	w = do(http.MethodGet, "/api/donations/upi-link?amount=70", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var link struct {
		Link string `json:"link"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	assert.True(t, strings.HasPrefix(link.Link, "upi://pay?"))

	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/api/donations/upi-link?amount=abc", "", false).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/api/donations/upi-link?amount=3", "", false).Code)

	w = do(http.MethodGet, "/api/donations/upi-qr?amount=20", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	path := "/api/profiles/" + f.user.ID + "/donation"
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodPost, path, `{"amount":20}`, false).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, path, `{"amount":21}`, true).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, path+"/receipt", "", true).Code)

	w = do(http.MethodPost, path, `{"amount":20}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"donorVerified":true`)

	w = do(http.MethodGet, path+"/receipt", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestMultiNotifierCombinesErrors(t *testing.T) {
	ok := new(MockNotifier)
	ok.On("DonationClaimed", mock.Anything, mock.Anything).Return(nil)
	bad := new(MockNotifier)
	bad.On("DonationClaimed", mock.Anything, mock.Anything).Return(errors.New("boom"))

	err := MultiNotifier(bad, ok, NopNotifier()).DonationClaimed(context.Background(), Claim{})
	assert.EqualError(t, err, "boom")
	ok.AssertExpectations(t)
}

func TestSNSNotifier(t *testing.T) {
	client := new(MockSNS)
	client.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return *in.TopicArn == "arn:aws:sns:ap-south-1:123:donations" &&
			strings.Contains(*in.Message, "Asha <asha@example.com> reports a donation of 50 INR") &&
			*in.MessageAttributes["amount"].StringValue == "50"
	})).Return(nil)

	err := NewSNSNotifier(client, "arn:aws:sns:ap-south-1:123:donations").DonationClaimed(context.Background(), Claim{
		UserID: "u1", Email: "asha@example.com", FullName: "Asha", Amount: 50, Currency: "INR", At: time.Now(),
	})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSESNotifier(t *testing.T) {
	client := new(MockSES)
	client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return *in.FromEmailAddress == "noreply@collegestar.in" &&
			in.Destination.ToAddresses[0] == "asha@example.com" &&
			in.Destination.BccAddresses[0] == "admin@collegestar.in" &&
			strings.Contains(*in.Content.Simple.Body.Text.Data, "Hi there,")
	})).Return(errors.New("throttled"))

	n := NewSESNotifier(client, "noreply@collegestar.in", []string{"admin@collegestar.in"})
	err := n.DonationClaimed(context.Background(), Claim{Email: "asha@example.com", Amount: 20, Currency: "INR"})
	assert.ErrorContains(t, err, "throttled")

	require.NoError(t, n.DonationClaimed(context.Background(), Claim{}))
	client.AssertNumberOfCalls(t, "SendEmail", 1)
}
