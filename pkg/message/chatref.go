package message

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrInvalidChatRef is returned by ParseChatRef for malformed references.
var ErrInvalidChatRef = errors.New("message: invalid chat reference")

var chatRefPattern = regexp.MustCompile(`^(-?\d+)(?:/(\d+))?$`)

// ChatRef points at a conversation, optionally narrowed to one thread.
// A zero ChatID means the reference is unset.
type ChatRef struct {
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
}

// IsZero reports whether the reference is unset.
func (r ChatRef) IsZero() bool {
	return r.ChatID == 0
}

// HasThread reports whether the reference is narrowed to a thread.
func (r ChatRef) HasThread() bool {
	return r.ThreadID != 0
}

// String renders the reference in the same "<chat>[/<thread>]" form ParseChatRef accepts.
func (r ChatRef) String() string {
	if r.ThreadID != 0 {
		return fmt.Sprintf("%d/%d", r.ChatID, r.ThreadID)
	}
	return strconv.FormatInt(r.ChatID, 10)
}

// ParseChatRef parses a "<chat>[/<thread>]" token such as "-1001234567890/42".
func ParseChatRef(s string) (ChatRef, error) {
	m := chatRefPattern.FindStringSubmatch(s)
	if m == nil {
		return ChatRef{}, fmt.Errorf("%w: %q", ErrInvalidChatRef, s)
	}

	chatID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return ChatRef{}, fmt.Errorf("%w: %q: %w", ErrInvalidChatRef, s, err)
	}
	if chatID == 0 {
		return ChatRef{}, fmt.Errorf("%w: chat id must not be 0", ErrInvalidChatRef)
	}

	ref := ChatRef{ChatID: chatID}
	if m[2] != "" {
		thread, err := strconv.Atoi(m[2])
		if err != nil {
			return ChatRef{}, fmt.Errorf("%w: %q: %w", ErrInvalidChatRef, s, err)
		}
		ref.ThreadID = thread
	}
	return ref, nil
}
