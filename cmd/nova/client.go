package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"nova/internal/protocol"
)

var (
	speechColor   = color.New(color.FgGreen)
	ackColor      = color.New(color.FgHiBlack)
	progressColor = color.New(color.FgHiBlack)
	errorColor    = color.New(color.FgRed)
	clarifyColor  = color.New(color.FgYellow)
	docColor      = color.New(color.FgCyan)
)

type client struct {
	ws       *websocket.Conn
	clientID string
	isTTY    bool
	renderer *glamour.TermRenderer
	done     chan struct{}
}

// newClient dials the server and completes the identity handshake, reusing
// the id saved from a previous session so the server can restore it.
func newClient(serverURL string) (*client, error) {
	ws, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}

	c := &client{
		ws:    ws,
		isTTY: term.IsTerminal(int(os.Stdout.Fd())),
		done:  make(chan struct{}),
	}
	if c.isTTY {
		c.renderer, _ = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	} else {
		color.NoColor = true
	}

	if err := c.handshake(); err != nil {
		_ = ws.Close()
		return nil, err
	}
	return c, nil
}

func (c *client) handshake() error {
	if err := c.send(protocol.TypeConnect, protocol.ConnectPayload{
		ClientID:   loadClientID(),
		ClientType: protocol.ClientTypeCLI,
		Version:    version,
	}); err != nil {
		return err
	}

	_, frame, err := c.ws.ReadMessage()
	if err != nil {
		return fmt.Errorf("handshake read: %w", err)
	}
	msg, err := protocol.Decode(frame)
	if err != nil {
		return fmt.Errorf("handshake decode: %w", err)
	}
	var connected protocol.ConnectedPayload
	if err := msg.UnmarshalPayload(&connected); err != nil {
		return fmt.Errorf("handshake payload: %w", err)
	}

	c.clientID = connected.ClientID
	saveClientID(connected.ClientID)
	if connected.IsReconnect {
		ackColor.Println("reconnected, session restored")
	} else {
		ackColor.Println("connected")
	}
	return nil
}

// run drives the input loop until EOF or /quit. Server messages print from
// a background goroutine as they arrive.
func (c *client) run() error {
	go c.receiveLoop()

	rl, err := readline.New(color.New(color.FgBlue).Sprint("you ") + "▸ ")
	if err != nil {
		return err
	}
	defer func() { _ = rl.Close() }()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/interrupt":
			if err := c.send(protocol.TypeInterrupt, nil); err != nil {
				return err
			}
		case line == "/status":
			if err := c.send(protocol.TypeTaskStatus, protocol.TaskStatusPayload{}); err != nil {
				return err
			}
		case strings.HasPrefix(line, "/focus "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/focus "))
			if err := c.send(protocol.TypeContextUpdate, protocol.ContextUpdatePayload{
				Type: "focus",
				Data: map[string]any{"type": "file", "path": path},
			}); err != nil {
				return err
			}
		default:
			if err := c.send(protocol.TypeInput, protocol.InputPayload{Text: line}); err != nil {
				return err
			}
		}
	}
}

func (c *client) receiveLoop() {
	defer close(c.done)
	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			errorColor.Println("\nconnection closed")
			return
		}
		msg, err := protocol.Decode(frame)
		if err != nil {
			continue
		}
		c.display(msg)
	}
}

func (c *client) display(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeAck:
		var ack protocol.AckPayload
		if msg.UnmarshalPayload(&ack) == nil {
			ackColor.Printf("nova ▸ %s\n", ack.Text)
		}
	case protocol.TypeSpeech:
		var speech protocol.SpeechPayload
		if msg.UnmarshalPayload(&speech) == nil {
			speechColor.Printf("nova ▸ %s\n", speech.Text)
		}
	case protocol.TypeDocument:
		var doc protocol.DocumentPayload
		if msg.UnmarshalPayload(&doc) == nil {
			docColor.Printf("document ▸ %s\n", doc.Path)
			if doc.Type == "markdown" {
				c.renderMarkdown(doc.Path)
			}
		}
	case protocol.TypeProgress:
		var progress protocol.ProgressPayload
		if msg.UnmarshalPayload(&progress) == nil {
			if progress.Message != "" {
				progressColor.Printf("… %s (%s)\n", progress.Status, progress.Message)
			} else {
				progressColor.Printf("… %s\n", progress.Status)
			}
		}
	case protocol.TypeError:
		var errPayload protocol.ErrorPayload
		if msg.UnmarshalPayload(&errPayload) == nil {
			errorColor.Printf("error [%s] %s\n", errPayload.Code, errPayload.Message)
		}
	case protocol.TypeClarify:
		var clarify protocol.ClarifyPayload
		if msg.UnmarshalPayload(&clarify) == nil {
			clarifyColor.Printf("nova asks ▸ %s\n", clarify.Question)
			for i, option := range clarify.Options {
				clarifyColor.Printf("  %d. %s\n", i+1, option)
			}
		}
	}
}

func (c *client) renderMarkdown(path string) {
	if c.renderer == nil {
		return
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if out, err := c.renderer.Render(string(body)); err == nil {
		fmt.Print(out)
	}
}

func (c *client) send(msgType protocol.MessageType, payload any) error {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *client) close() {
	_ = c.ws.Close()
	<-c.done
}

func clientIDPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nova", "client_id")
}

func loadClientID() string {
	path := clientIDPath()
	if path == "" {
		return ""
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}

func saveClientID(id string) {
	path := clientIDPath()
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(path, []byte(id), 0o600)
}
