package main

import (
	"fmt"
	"io"
	"sync"

	"orderbot/internal/cart"
)

// console renders the conversation as plain text. Callbacks arrive from
// turn and payment goroutines, so every write holds mu.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) OnUserMessage(text string) {
	c.printf("you> %s\n", text)
}

func (c *console) OnBotMessage(text string) {
	c.printf("bot> %s\n", text)
}

func (c *console) OnCartChanged(v cart.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v.Empty {
		fmt.Fprintf(c.out, "cart: empty (total %s)\n", v.Total)
		return
	}
	fmt.Fprintln(c.out, "cart:")
	for _, line := range v.Lines {
		fmt.Fprintf(c.out, "  %s\n", line)
	}
	fmt.Fprintf(c.out, "  total: %s   (/clear, /confirm)\n", v.Total)
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
