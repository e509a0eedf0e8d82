package producer

import (
	"time"

	"github.com/google/uuid"

	"github.com/fa-sharp/rschat-relay/internal/chatmodel"
	"github.com/fa-sharp/rschat-relay/internal/session"
)

// BuildAssistantMessage converts a completed Run's Result into the
// session.Message the caller should persist via session.Store.AppendMessage.
// A cancelled result is still persisted, marked Interrupted, so the
// partial response the client already saw is not lost on reload.
func BuildAssistantMessage(result Result, sessionID, providerID, model string) session.Message {
	meta := session.MessageMeta{
		Interrupted: result.Cancelled || len(result.Errors) > 0,
		ProviderID:  providerID,
		Model:       model,
	}
	if len(result.ToolCalls) > 0 {
		meta.ToolCalls = make([]session.ToolCallRef, len(result.ToolCalls))
		for i, tc := range result.ToolCalls {
			meta.ToolCalls[i] = session.ToolCallRef{
				CallID:     tc.CallID,
				ToolID:     tc.ToolID,
				ToolName:   tc.ToolName,
				Parameters: tc.Parameters,
			}
		}
	}
	if usage := toSessionUsage(result.Usage); usage != nil {
		meta.Usage = usage
	}
	return session.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      session.RoleAssistant,
		Content:   result.Text,
		Meta:      meta,
		CreatedAt: time.Now().UTC(),
	}
}

func toSessionUsage(u chatmodel.Usage) *session.Usage {
	if u.InputTokens == nil && u.OutputTokens == nil && u.Cost == nil {
		return nil
	}
	return &session.Usage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		Cost:         u.Cost,
	}
}
