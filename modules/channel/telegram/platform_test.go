package telegram

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/relayctl/internal/relay"
	"github.com/flemzord/relayctl/pkg/message"
)

const probeChat = 4242

func newTestPlatform(api *fakeAPI, index MessageIndex) *Platform {
	return NewPlatform(api.client(), api.client(WithoutRateLimitRetry()), index, probeChat, discardLogger())
}

func TestFetchMessageFromIndex(t *testing.T) {
	api := newFakeAPI(t)
	index := newMemIndex()
	want := &message.Message{ChatID: -100, ID: 10, ThreadID: 3, Text: "hi"}
	_ = index.Record(context.Background(), want)

	got, err := newTestPlatform(api, index).FetchMessage(context.Background(), -100, 10)
	if err != nil {
		t.Fatalf("FetchMessage() error: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want indexed message", got)
	}
	if n := len(api.callsTo("forwardMessage")); n != 0 {
		t.Errorf("forwardMessage calls = %d, want 0", n)
	}
}

func TestFetchMessageProbe(t *testing.T) {
	api := newFakeAPI(t)
	api.reply("forwardMessage", Message{
		MessageID:       900,
		Chat:            Chat{ID: probeChat},
		Document:        &Document{FileID: "d", MIMEType: "application/pdf"},
		MessageThreadID: 0,
	})

	got, err := newTestPlatform(api, newMemIndex()).FetchMessage(context.Background(), -100, 11)
	if err != nil {
		t.Fatalf("FetchMessage() error: %v", err)
	}
	if got == nil {
		t.Fatal("expected probed message")
	}
	if got.ChatID != -100 || got.ID != 11 || got.ThreadID != 0 {
		t.Errorf("identity = %d/%d thread %d", got.ChatID, got.ID, got.ThreadID)
	}
	if !got.Document.IsPDF() {
		t.Errorf("Document = %+v, want PDF", got.Document)
	}

	fwd := decodeBody[ForwardMessageRequest](t, api.callsTo("forwardMessage")[0])
	if fwd.ChatID != probeChat || fwd.FromChatID != -100 || fwd.MessageID != 11 || !fwd.DisableNotification {
		t.Errorf("forward request = %+v", fwd)
	}

	deletes := api.callsTo("deleteMessage")
	if len(deletes) != 1 {
		t.Fatalf("deleteMessage calls = %d, want 1", len(deletes))
	}
	del := decodeBody[deleteMessageRequest](t, deletes[0])
	if del.ChatID != probeChat || del.MessageID != 900 {
		t.Errorf("delete request = %+v", del)
	}
}

func TestFetchMessageProbeLogsUnknownThread(t *testing.T) {
	api := newFakeAPI(t)
	api.reply("forwardMessage", Message{MessageID: 901, Chat: Chat{ID: probeChat}, Text: "reply in a thread?"})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := NewPlatform(api.client(), api.client(WithoutRateLimitRetry()), nil, probeChat, logger)

	got, err := p.FetchMessage(context.Background(), -100, 13)
	if err != nil || got == nil {
		t.Fatalf("FetchMessage() = %+v, %v", got, err)
	}
	out := buf.String()
	if !strings.Contains(out, "probed message has unknown thread") || !strings.Contains(out, "message_id=13") {
		t.Errorf("log = %q, want unknown-thread debug line", out)
	}
}

func TestFetchMessageNotFound(t *testing.T) {
	api := newFakeAPI(t)
	api.fail("forwardMessage", http.StatusBadRequest, "Bad Request: message to forward not found", 0)

	got, err := newTestPlatform(api, nil).FetchMessage(context.Background(), -100, 12)
	if err != nil {
		t.Fatalf("FetchMessage() error: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestFetchMessageWithoutProbeChat(t *testing.T) {
	api := newFakeAPI(t)
	p := NewPlatform(api.client(), api.client(), nil, 0, discardLogger())

	got, err := p.FetchMessage(context.Background(), -100, 12)
	if err != nil || got != nil {
		t.Errorf("FetchMessage() = %+v, %v; want nil, nil", got, err)
	}
	if n := len(api.callsTo("forwardMessage")); n != 0 {
		t.Errorf("forwardMessage calls = %d, want 0", n)
	}
}

func TestRateLimitBecomesRelayError(t *testing.T) {
	api := newFakeAPI(t)
	api.fail("copyMessage", http.StatusTooManyRequests, "Too Many Requests: retry after 7", 7)
	api.fail("forwardMessage", http.StatusTooManyRequests, "Too Many Requests: retry after 3", 3)

	p := newTestPlatform(api, nil)

	_, err := p.SendMessage(context.Background(), message.ChatRef{ChatID: 1}, &message.Message{ChatID: 2, ID: 3})
	rl, ok := relay.AsRateLimit(err)
	if !ok {
		t.Fatalf("SendMessage() error = %v, want RateLimitError", err)
	}
	if rl.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %s, want 7s", rl.RetryAfter)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Error("RateLimitError should wrap the APIError")
	}

	_, err = p.FetchMessage(context.Background(), 2, 4)
	if rl, ok := relay.AsRateLimit(err); !ok || rl.RetryAfter != 3*time.Second {
		t.Errorf("FetchMessage() error = %v, want 3s RateLimitError", err)
	}
}

func TestSendMessageCopiesIntoThread(t *testing.T) {
	api := newFakeAPI(t)
	api.reply("copyMessage", MessageID{MessageID: 501})

	sent, err := newTestPlatform(api, nil).SendMessage(context.Background(),
		message.ChatRef{ChatID: -300, ThreadID: 8},
		&message.Message{ChatID: -100, ID: 20},
	)
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if sent != (message.Sent{ChatID: -300, MessageID: 501}) {
		t.Errorf("sent = %+v", sent)
	}

	body := api.callsTo("copyMessage")[0]
	req := decodeBody[CopyMessageRequest](t, body)
	if req.ChatID != -300 || req.FromChatID != -100 || req.MessageID != 20 || req.MessageThreadID != 8 {
		t.Errorf("request = %+v", req)
	}
	if req.ReplyParameters == nil || *req.ReplyParameters != (ReplyParameters{MessageID: 8, AllowSendingWithoutReply: true}) {
		t.Errorf("reply_parameters = %+v, want reply to thread 8", req.ReplyParameters)
	}
	if !strings.Contains(string(body), `"reply_parameters":{"message_id":8`) {
		t.Errorf("body = %s", body)
	}
}

func TestSendMessageWithoutThreadHasNoReply(t *testing.T) {
	api := newFakeAPI(t)
	api.reply("copyMessage", MessageID{MessageID: 502})

	_, err := newTestPlatform(api, nil).SendMessage(context.Background(),
		message.ChatRef{ChatID: -300},
		&message.Message{ChatID: -100, ID: 21},
	)
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	body := string(api.callsTo("copyMessage")[0])
	if strings.Contains(body, "reply_parameters") || strings.Contains(body, "message_thread_id") {
		t.Errorf("body = %s, want no thread fields", body)
	}
}

func TestPinMessageIsSilent(t *testing.T) {
	api := newFakeAPI(t)

	if err := newTestPlatform(api, nil).PinMessage(context.Background(), -300, 501); err != nil {
		t.Fatalf("PinMessage() error: %v", err)
	}
	req := decodeBody[PinChatMessageRequest](t, api.callsTo("pinChatMessage")[0])
	if req.ChatID != -300 || req.MessageID != 501 || !req.DisableNotification {
		t.Errorf("request = %+v", req)
	}
}

func TestReplyAndEdit(t *testing.T) {
	api := newFakeAPI(t)
	api.reply("sendMessage", Message{MessageID: 61, Chat: Chat{ID: 42}})
	api.reply("editMessageText", Message{MessageID: 61, Chat: Chat{ID: 42}})

	p := newTestPlatform(api, nil)
	kb := message.Keyboard{{{Text: "Videos ✅", Data: "video"}, {Text: "PDFs ❌", Data: "pdf"}}}

	sent, err := p.Reply(context.Background(), 42, 5, "Settings", kb)
	if err != nil {
		t.Fatalf("Reply() error: %v", err)
	}
	if sent != (message.Sent{ChatID: 42, MessageID: 61}) {
		t.Errorf("sent = %+v", sent)
	}
	req := decodeBody[SendMessageRequest](t, api.callsTo("sendMessage")[0])
	if req.ReplyToMessageID != 5 || len(req.ReplyMarkup.InlineKeyboard[0]) != 2 {
		t.Errorf("request = %+v", req)
	}

	if err := p.Edit(context.Background(), sent, "Progress: 50%", nil); err != nil {
		t.Fatalf("Edit() error: %v", err)
	}
	edit := decodeBody[EditMessageTextRequest](t, api.callsTo("editMessageText")[0])
	if edit.MessageID != 61 || edit.Text != "Progress: 50%" || edit.ReplyMarkup != nil {
		t.Errorf("edit request = %+v", edit)
	}
}

func TestEditNotModifiedIsIgnored(t *testing.T) {
	api := newFakeAPI(t)
	api.fail("editMessageText", http.StatusBadRequest,
		"Bad Request: message is not modified: specified new message content and reply markup are exactly the same", 0)

	err := newTestPlatform(api, nil).Edit(context.Background(), message.Sent{ChatID: 1, MessageID: 2}, "same", nil)
	if err != nil {
		t.Errorf("Edit() error = %v, want nil", err)
	}
}

func TestAnswerCallback(t *testing.T) {
	api := newFakeAPI(t)

	if err := newTestPlatform(api, nil).AnswerCallback(context.Background(), "cb9", "denied", true); err != nil {
		t.Fatalf("AnswerCallback() error: %v", err)
	}
	req := decodeBody[AnswerCallbackQueryRequest](t, api.callsTo("answerCallbackQuery")[0])
	want := AnswerCallbackQueryRequest{CallbackQueryID: "cb9", Text: "denied", ShowAlert: true}
	if req != want {
		t.Errorf("request = %+v, want %+v", req, want)
	}
}
