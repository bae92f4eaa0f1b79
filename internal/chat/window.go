package chat

// HistoryWindow is the number of most recent messages forwarded to the
// generation engine. Older messages are dropped, never summarized.
const HistoryWindow = 10

// Window returns the trailing limit messages of history, preserving
// order. The input slice is never mutated; when it already fits, it is
// returned as-is.
func Window(history []Message, limit int) []Message {
	if limit <= 0 {
		return []Message{}
	}
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
