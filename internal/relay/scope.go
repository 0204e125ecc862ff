package relay

import "github.com/flemzord/relayctl/pkg/message"

// InScope reports whether msg belongs to the configured source scope. With a
// source thread only that thread qualifies, otherwise only messages outside
// any thread.
func InScope(source message.ChatRef, msg *message.Message) bool {
	if source.HasThread() {
		return msg.ThreadID == source.ThreadID
	}
	return !msg.InThread()
}
