package lark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/autoclaim/internal/domain/entity"
)

type fakeOpenAPI struct {
	server      *httptest.Server
	messageCode int
	receiveType string
	message     map[string]interface{}
}

func newFakeOpenAPI(t *testing.T, messageCode int) *fakeOpenAPI {
	t.Helper()
	f := &fakeOpenAPI{messageCode: messageCode}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/tenant_access_token/internal"):
			_, _ = w.Write([]byte(`{"code":0,"msg":"ok","tenant_access_token":"t-test","expire":7200}`))
		case r.URL.Path == "/open-apis/im/v1/messages":
			f.receiveType = r.URL.Query().Get("receive_id_type")
			_ = json.NewDecoder(r.Body).Decode(&f.message)
			if f.messageCode != 0 {
				_, _ = w.Write([]byte(`{"code":230002,"msg":"bot is not in the chat"}`))
				return
			}
			_, _ = w.Write([]byte(`{"code":0,"msg":"success","data":{"message_id":"om_123"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func reviewClaim() *entity.Claim {
	return &entity.Claim{
		ID:             "01HZX",
		UserID:         "Alice Tan",
		Details:        entity.ClaimDetails{Provider: "Singtel", TotalAmount: 1500},
		EligibleAmount: 1200,
		Status:         entity.ClaimStatusNeedsReview,
		Reasoning:      "Customer name on bill differs.",
		Months:         []string{"January"},
		Type:           entity.ReimbursementTypeMobile,
		SubmittedAt:    time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestMessenger_SendReviewAlert(t *testing.T) {
	api := newFakeOpenAPI(t, 0)
	sdk := NewSDKClient(Config{AppID: "cli_test", AppSecret: "secret", BaseURL: api.server.URL}, zap.NewNop())
	m := NewMessenger(sdk, "", "oc_finance", "https://claims.example.com/admin", zap.NewNop())

	require.NoError(t, m.SendReviewAlert(context.Background(), reviewClaim()))

	assert.Equal(t, ReceiveIDTypeChatID, api.receiveType)
	assert.Equal(t, "oc_finance", api.message["receive_id"])
	assert.Equal(t, "interactive", api.message["msg_type"])

	content := api.message["content"].(string)
	assert.Contains(t, content, "Alice Tan")
	assert.Contains(t, content, "Claim needs review")
	assert.Contains(t, content, "https://claims.example.com/admin")
}

func TestMessenger_APIFailure(t *testing.T) {
	api := newFakeOpenAPI(t, 230002)
	sdk := NewSDKClient(Config{AppID: "cli_test", AppSecret: "secret", BaseURL: api.server.URL}, zap.NewNop())
	m := NewMessenger(sdk, ReceiveIDTypeChatID, "oc_finance", "", zap.NewNop())

	err := m.SendReviewAlert(context.Background(), reviewClaim())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "230002")
}

func TestMessenger_RequiresReceiver(t *testing.T) {
	sdk := NewSDKClient(Config{AppID: "cli_test", AppSecret: "secret"}, zap.NewNop())
	m := NewMessenger(sdk, ReceiveIDTypeChatID, "", "", zap.NewNop())

	assert.Error(t, m.SendReviewAlert(context.Background(), reviewClaim()))
}

func TestBuildReviewCard(t *testing.T) {
	card := buildReviewCard(reviewClaim(), "")

	header := card["header"].(map[string]interface{})
	assert.Equal(t, "orange", header["template"])

	elements := card["elements"].([]interface{})
	// fields, divider, assessment, note; no console button without a URL
	assert.Len(t, elements, 4)
}
