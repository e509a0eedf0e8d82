package eventlog

import "fmt"

// ChatStreamPrefix returns the key prefix for a user's chat streams, used by
// ScanKeys to list ongoing sessions.
func ChatStreamPrefix(userID string) string {
	return fmt.Sprintf("chat:%s:", userID)
}

// ChatStreamKey returns the log key for one user's session stream.
func ChatStreamKey(userID, sessionID string) string {
	return ChatStreamPrefix(userID) + sessionID
}

// ToolStreamKey returns the "tool:{messageID}:{callID}" name of a tool
// execution. Tool execution never uses the durable Log, and nothing in this
// module calls ToolStreamKey.
func ToolStreamKey(messageID, callID string) string {
	return fmt.Sprintf("tool:%s:%s", messageID, callID)
}
