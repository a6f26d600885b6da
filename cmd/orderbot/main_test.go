package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"orderbot/internal/cart"
	"orderbot/internal/config"
	"orderbot/internal/store"
	"orderbot/internal/types"
)

type fakeChatter struct {
	mu    sync.Mutex
	calls []string
	items []string
}

func (f *fakeChatter) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeChatter) SubmitUserText(raw string) { f.record("text:" + raw) }
func (f *fakeChatter) QuickAdd(item string)      { f.record("add:" + item) }
func (f *fakeChatter) Clear()                    { f.record("clear") }
func (f *fakeChatter) Confirm()                  { f.record("confirm") }

func (f *fakeChatter) QuickItems(context.Context) []string { return f.items }

func TestRepl_Dispatch(t *testing.T) {
	var buf bytes.Buffer
	f := &fakeChatter{items: []string{"Butter Naan"}}
	in := strings.NewReader("show me the menu\n/add Masala Dosa\n/items\n/clear\n/confirm\n/add\n/bogus\n/quit\nnever sent\n")

	assert.False(t, repl(context.Background(), in, newConsole(&buf), f), "/quit is not end of input")

	assert.Equal(t, []string{"text:show me the menu", "add:Masala Dosa", "clear", "confirm"}, f.calls)
	out := buf.String()
	assert.Contains(t, out, "/add Butter Naan")
	assert.Contains(t, out, "usage: /add <item>")
	assert.Contains(t, out, "unknown command /bogus")
}

func TestRepl_EOF(t *testing.T) {
	f := &fakeChatter{}
	assert.True(t, repl(context.Background(), strings.NewReader("hi"), newConsole(&bytes.Buffer{}), f))
	assert.Equal(t, []string{"text:hi"}, f.calls)
}

func TestConsole_Cart(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf)
	c.OnCartChanged(cart.Reconcile(nil))
	c.OnCartChanged(cart.Reconcile(&types.OrderSnapshot{
		Items: []types.OrderItem{{Name: "Butter Naan", Quantity: 2, TotalPrice: "120.00"}},
		Total: "120.00",
	}))
	c.OnUserMessage("hi")
	c.OnBotMessage("hello")

	assert.Equal(t, "cart: empty (total 0.00)\n"+
		"cart:\n"+
		"  2 × Butter Naan — 120.00\n"+
		"  total: 120.00   (/clear, /confirm)\n"+
		"you> hi\n"+
		"bot> hello\n", buf.String())
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	b, closeFn, err := openBackend(ctx, config.Config{SessionBackend: config.BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryBackend{}, b)
	assert.NoError(t, closeFn())

	b, closeFn, err = openBackend(ctx, config.Config{
		SessionBackend: config.BackendFile,
		SessionFile:    t.TempDir() + "/session.json",
		SessionKey:     "rb_chat_session_id",
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.FileBackend{}, b)
	assert.NoError(t, closeFn())

	_, closeFn, err = openBackend(ctx, config.Config{SessionBackend: "etcd"}, nil)
	assert.ErrorContains(t, err, "unknown session backend")
	assert.NotNil(t, closeFn)
}

func TestClosers_RunInReverse(t *testing.T) {
	var order []int
	c := closers{
		func() error {
			order = append(order, 1)
			return nil
		},
		func() error {
			order = append(order, 2)
			return assert.AnError
		},
	}
	assert.ErrorIs(t, c.Close(), assert.AnError)
	assert.Equal(t, []int{2, 1}, order)
}

func TestRunChat_PipedInputWaitsForReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chatbot/simple/", r.URL.Path)
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"reply":"Here is the menu"}`))
	}))
	defer server.Close()

	prevCfg, prevLogger := cfg, logger
	t.Cleanup(func() { cfg, logger = prevCfg, prevLogger })
	cfg = config.Config{
		APIBaseURL:     server.URL,
		RestaurantID:   1,
		SessionBackend: config.BackendMemory,
		CheckoutAddr:   "127.0.0.1:0",
		QuickItems:     []string{"Butter Naan"},
	}
	cfg.Profile.Greeting = "Hi!"
	logger = zap.NewNop()

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetIn(strings.NewReader("show menu\n"))
	cmd.SetOut(&out)

	require.NoError(t, runChat(cmd, nil))
	assert.Equal(t, "cart: empty (total 0.00)\n"+
		"bot> Hi!\n"+
		"you> show menu\n"+
		"bot> Here is the menu\n"+
		"cart: empty (total 0.00)\n", out.String())
}

type slowWaiter struct{ release chan struct{} }

func (w slowWaiter) Wait() { <-w.release }

func TestDrain_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := slowWaiter{release: make(chan struct{})}
	defer close(w.release)

	returned := make(chan struct{})
	go func() {
		drain(ctx, w)
		close(returned)
	}()
	cancel()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("drain ignored cancellation")
	}
}
