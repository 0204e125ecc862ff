package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/flemzord/relayctl/pkg/message"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

// apiCall is one request received by fakeAPI.
type apiCall struct {
	Method string
	Body   []byte
}

// fakeAPI is an httptest Bot API. Each method answers through its route;
// unrouted methods answer {"ok":true,"result":true}.
type fakeAPI struct {
	t      *testing.T
	srv    *httptest.Server
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []apiCall
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, routes: make(map[string]http.HandlerFunc)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	method := r.URL.Path[strings.LastIndexByte(r.URL.Path, '/')+1:]

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Body: body})
	route := f.routes[method]
	f.mu.Unlock()

	if route == nil {
		writeJSON(f.t, w, APIResponse[bool]{OK: true, Result: true})
		return
	}
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	route(w, r)
}

func (f *fakeAPI) handle(method string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method] = h
}

// reply answers method with a successful result.
func (f *fakeAPI) reply(method string, result any) {
	f.handle(method, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(f.t, w, map[string]any{"ok": true, "result": result})
	})
}

// fail answers method with an API error.
func (f *fakeAPI) fail(method string, status int, description string, retryAfter int) {
	f.handle(method, func(w http.ResponseWriter, _ *http.Request) {
		resp := APIResponse[json.RawMessage]{OK: false, ErrorCode: status, Description: description}
		if retryAfter > 0 {
			resp.Parameters = &ResponseParameters{RetryAfter: retryAfter}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	})
}

// callsTo returns the bodies of every call to method.
func (f *fakeAPI) callsTo(method string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c.Body)
		}
	}
	return out
}

func (f *fakeAPI) client(opts ...ClientOption) *Client {
	return NewClient("TOKEN", f.srv.URL, opts...)
}

func decodeBody[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	return v
}

// memIndex is an in-memory MessageIndex.
type memIndex struct {
	mu   sync.Mutex
	msgs map[[2]int64]*message.Message
}

func newMemIndex() *memIndex {
	return &memIndex{msgs: make(map[[2]int64]*message.Message)}
}

func (x *memIndex) Record(_ context.Context, msg *message.Message) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.msgs[[2]int64{msg.ChatID, int64(msg.ID)}] = msg
	return nil
}

func (x *memIndex) Lookup(_ context.Context, chatID int64, id int) (*message.Message, bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	msg, ok := x.msgs[[2]int64{chatID, int64(id)}]
	return msg, ok, nil
}

func (x *memIndex) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.msgs)
}

// recordingHandler collects updates and implements the optional handler hooks.
type recordingHandler struct {
	mu       sync.Mutex
	updates  []message.Update
	username string
}

func (h *recordingHandler) HandleUpdate(_ context.Context, u message.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, u)
}

func (h *recordingHandler) SetBotUsername(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.username = name
}

func (h *recordingHandler) Menu() []message.Command {
	return []message.Command{{Name: "status", Description: "Show status"}}
}

func (h *recordingHandler) snapshot() []message.Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]message.Update(nil), h.updates...)
}
