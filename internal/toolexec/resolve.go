package toolexec

import (
	"github.com/fa-sharp/rschat-relay/internal/relayerr"
	"github.com/fa-sharp/rschat-relay/internal/session"
)

// ResolvePendingCall finds the pending tool call callID embedded in msg's
// meta, returning a relayerr-wrapped ToolCallNotFound error if absent.
func ResolvePendingCall(msg session.Message, callID string) (session.ToolCallRef, error) {
	for _, tc := range msg.Meta.ToolCalls {
		if tc.CallID == callID {
			return tc, nil
		}
	}
	return session.ToolCallRef{}, relayerr.New(relayerr.ToolCallNotFound, "no pending call "+callID+" on message "+msg.ID)
}
