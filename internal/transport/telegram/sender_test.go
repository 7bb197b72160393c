package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "shednotify/pkg/logx"
)

type botAPI struct {
	mu    sync.Mutex
	chats []string
	texts []string
	fail  string // chat id to reject
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)
	params := map[string]any{}
	_ = json.Unmarshal(body, &params)
	chat := fmt.Sprint(params["chat_id"])
	text := fmt.Sprint(params["text"])

	b.mu.Lock()
	b.chats = append(b.chats, chat)
	b.texts = append(b.texts, text)
	fail := b.fail
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if chat == fail {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":` + chat + `,"type":"private"},"text":"ok"}}`))
}

func TestSendDeliversToEveryChat(t *testing.T) {
	api := &botAPI{fail: "-200"}
	srv := httptest.NewServer(api)
	defer srv.Close()

	s, err := New(Config{Token: "123:abc", ChatIDs: []int64{100, -200, 300}, APIURL: srv.URL}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, "telegram", s.Channel())

	err = s.Send(context.Background(), "Load shedding expected in about 5 minutes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat -200")

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"100", "-200", "300"}, api.chats)
	assert.Equal(t, "Load shedding expected in about 5 minutes", api.texts[0])
}

func TestNewRequiresTokenAndChats(t *testing.T) {
	_, err := New(Config{ChatIDs: []int64{1}}, logx.Nop())
	assert.Error(t, err)
	_, err = New(Config{Token: "x"}, logx.Nop())
	assert.Error(t, err)
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitText("short", 10))

	got := splitText("aaaa\nbbbb\ncccc", 10)
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, got)

	long := strings.Repeat("x", 25)
	got = splitText(long, 10)
	require.Len(t, got, 3)
	assert.Equal(t, long, strings.Join(got, ""))
}
