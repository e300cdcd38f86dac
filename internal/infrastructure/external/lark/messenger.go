package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/autoclaim/internal/domain/entity"
)

// Receive id types accepted by the IM message API
const (
	ReceiveIDTypeChatID = "chat_id"
	ReceiveIDTypeOpenID = "open_id"
	ReceiveIDTypeEmail  = "email"
)

// Messenger posts review alerts to the finance team's chat
type Messenger struct {
	sdk           *SDKClient
	receiveIDType string
	receiveID     string
	consoleURL    string
	logger        *zap.Logger
}

// NewMessenger creates a messenger that sends every alert to one receiver.
// consoleURL, when set, is linked from the card.
func NewMessenger(sdk *SDKClient, receiveIDType, receiveID, consoleURL string, logger *zap.Logger) *Messenger {
	if receiveIDType == "" {
		receiveIDType = ReceiveIDTypeChatID
	}
	return &Messenger{
		sdk:           sdk,
		receiveIDType: receiveIDType,
		receiveID:     receiveID,
		consoleURL:    consoleURL,
		logger:        logger,
	}
}

// SendReviewAlert sends an interactive card for a claim awaiting a decision
func (m *Messenger) SendReviewAlert(ctx context.Context, claim *entity.Claim) error {
	if m.receiveID == "" {
		return fmt.Errorf("receive id cannot be empty")
	}

	card, err := json.Marshal(buildReviewCard(claim, m.consoleURL))
	if err != nil {
		return fmt.Errorf("failed to marshal card content: %w", err)
	}

	messageID, err := m.send(ctx, "interactive", string(card))
	if err != nil {
		return err
	}

	m.logger.Info("Review alert sent",
		zap.String("claim_id", claim.ID),
		zap.String("message_id", messageID))
	return nil
}

func (m *Messenger) send(ctx context.Context, msgType, content string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(m.receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(m.receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := m.sdk.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", m.receiveID),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", m.receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	return messageID, nil
}
