package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"orderbot/internal/chat"
	"orderbot/internal/checkout"
	"orderbot/internal/conversation"
	"orderbot/internal/payment"
	"orderbot/internal/store"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive ordering chat",
	Long: `Starts a chat with the restaurant's assistant.

Anything you type is sent to the server as-is. Shortcuts:
  /add <item>  add an item to the cart
  /items       list quick-add items
  /clear       empty the cart
  /confirm     confirm the order and pay
  /quit        leave`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cleanup := closers{closeBackend}
	defer func() {
		if err := cleanup.Close(); err != nil {
			logger.Warn("cleanup failed", zap.Error(err))
		}
	}()

	out := newConsole(cmd.OutOrStdout())
	client := chat.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, logger.Named("chat"))

	host := checkout.NewHost(checkout.Options{
		Addr:        cfg.CheckoutAddr,
		Name:        cfg.Profile.Checkout.Name,
		Description: cfg.Profile.Checkout.Description,
		ThemeColor:  cfg.Profile.Checkout.ThemeColor,
		Open: func(url string) error {
			out.OnBotMessage("Complete your payment in the browser: " + url)
			return nil
		},
	}, logger.Named("checkout"))
	if err := host.Start(); err != nil {
		return err
	}
	cleanup = append(cleanup, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return host.Shutdown(sctx)
	})

	verifier := payment.NewVerifyClient(cfg.APIBaseURL, cfg.HTTPTimeout, logger.Named("payment"))
	payments := payment.NewOrchestrator(host, verifier, out, logger.Named("payment"))

	ctrl, err := conversation.New(conversation.Session{
		RestaurantID: cfg.RestaurantID,
		Store:        store.NewSessionStore(backend, logger.Named("session")),
		Transport:    client,
		Payments:     payments,
		Renderer:     out,
		Items:        client,
		QuickItems:   cfg.QuickItems,
		Greeting:     cfg.Profile.Greeting,
		Log:          logger.Named("conversation"),
	})
	if err != nil {
		return err
	}
	// Close before the checkout host shuts down so open payments unwind
	// through the orchestrator.
	defer ctrl.Close()

	ctrl.Start()
	if eof := repl(ctx, cmd.InOrStdin(), out, ctrl); eof {
		// Piped input: let the last turns and any payment finish.
		drain(ctx, ctrl)
	}
	return nil
}

// drain waits for outstanding turns and payments unless ctx ends first.
func drain(ctx context.Context, w interface{ Wait() }) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// chatter is the part of the controller the prompt drives.
type chatter interface {
	SubmitUserText(raw string)
	QuickAdd(item string)
	Clear()
	Confirm()
	QuickItems(ctx context.Context) []string
}

// repl reads lines until EOF, /quit or ctx is done and reports whether input
// ran out. Lines not starting with a shortcut go to the server untouched.
func repl(ctx context.Context, in io.Reader, out *console, c chatter) (eof bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return false
		case line, ok := <-lines:
			if !ok {
				return true
			}
			if quit := dispatch(ctx, line, out, c); quit {
				return false
			}
		}
	}
}

func dispatch(ctx context.Context, line string, out *console, c chatter) (quit bool) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/add":
		if strings.TrimSpace(arg) == "" {
			out.printf("usage: /add <item>\n")
			return false
		}
		c.QuickAdd(arg)
	case "/clear":
		c.Clear()
	case "/confirm":
		c.Confirm()
	case "/items":
		items := c.QuickItems(ctx)
		if len(items) == 0 {
			out.printf("no quick items available\n")
			return false
		}
		for _, it := range items {
			out.printf("  /add %s\n", it)
		}
	default:
		if strings.HasPrefix(cmd, "/") {
			out.printf("unknown command %s\n", cmd)
			return false
		}
		c.SubmitUserText(line)
	}
	return false
}
