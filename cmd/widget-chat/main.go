// Command widget-chat is a terminal rendition of the support chat widget:
// it opens a widget session against a backend and bridges stdin/stdout to
// the conversation. Useful for poking at a backend without a browser.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/leadergroupsaudi/chatkit-go/internal/dotenv"
	"github.com/leadergroupsaudi/chatkit-go/pkg/channel"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core/chat"
	chatkit "github.com/leadergroupsaudi/chatkit-go/sdk"
)

const (
	defaultBaseURL = "http://127.0.0.1:8080"
	defaultTimeout = 15 * time.Second
)

type widgetConfig struct {
	BaseURL   string
	CompanyID string
	AgentID   string
	APIKey    string
	Timeout   time.Duration
}

func parseWidgetConfig(args []string, getenv func(string) string) (widgetConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := widgetConfig{}
	fs := flag.NewFlagSet("widget-chat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.BaseURL, "base-url", strings.TrimSpace(firstNonEmpty(getenv("CHAT_BASE_URL"), defaultBaseURL)), "chat backend base URL")
	fs.StringVar(&cfg.CompanyID, "company", strings.TrimSpace(getenv("CHAT_COMPANY_ID")), "company id (or CHAT_COMPANY_ID)")
	fs.StringVar(&cfg.AgentID, "agent", strings.TrimSpace(getenv("CHAT_AGENT_ID")), "agent id (or CHAT_AGENT_ID)")
	fs.StringVar(&cfg.APIKey, "api-key", strings.TrimSpace(getenv("CHAT_API_KEY")), "optional api key (or CHAT_API_KEY)")
	fs.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "per-request timeout (e.g. 15s)")

	if err := fs.Parse(args); err != nil {
		return widgetConfig{}, err
	}
	if err := validateWidgetConfig(cfg); err != nil {
		return widgetConfig{}, err
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func validateWidgetConfig(cfg widgetConfig) error {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return errors.New("base-url must not be empty")
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || strings.TrimSpace(baseURL.Scheme) == "" || strings.TrimSpace(baseURL.Host) == "" {
		return errors.New("base-url must be a valid absolute URL")
	}
	if baseURL.User != nil {
		return errors.New("base-url must not include credentials")
	}
	if strings.TrimSpace(cfg.CompanyID) == "" {
		return errors.New("company is required (flag -company or CHAT_COMPANY_ID)")
	}
	if strings.TrimSpace(cfg.AgentID) == "" {
		return errors.New("agent is required (flag -agent or CHAT_AGENT_ID)")
	}
	if cfg.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	return nil
}

func main() {
	if err := dotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "widget-chat: %v\n", err)
		os.Exit(1)
	}

	cfg, err := parseWidgetConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "widget-chat: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "widget-chat: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg widgetConfig, in io.Reader, out, errOut io.Writer) error {
	opts := []chatkit.ClientOption{
		chatkit.WithBaseURL(cfg.BaseURL),
		chatkit.WithOpenWindow(openBrowser),
	}
	if cfg.APIKey != "" {
		opts = append(opts, chatkit.WithAPIKey(cfg.APIKey))
	}
	client := chatkit.NewClient(opts...)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	sess, err := client.Widget.Open(ctx, chatkit.OpenRequest{
		CompanyID: cfg.CompanyID,
		AgentID:   cfg.AgentID,
		OnMessage: func(m chat.Message) {
			if m.Sender == chat.SenderUser {
				return
			}
			fmt.Fprintf(out, "\n[%s] %s\n> ", m.Sender, m.Text)
		},
		OnTyping: func() {
			fmt.Fprint(out, "\r[agent is typing...]\n> ")
		},
		OnWorking: func(detail string) {
			fmt.Fprintf(out, "\r[agent is working: %s]\n> ", detail)
		},
		OnConnectionChange: func(s channel.State) {
			switch s {
			case channel.StateClosedRetryPending:
				fmt.Fprint(errOut, "\n[connection lost, reconnecting...]\n")
			case channel.StateClosedExhausted:
				fmt.Fprint(errOut, "\n[connection lost for good, restart to retry]\n")
			}
		},
	})
	cancel()
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Fprintf(out, "connected (session %s", sess.SessionID())
	if sess.Resumed() {
		fmt.Fprint(out, ", resumed")
	}
	fmt.Fprintln(out, "). /call requests a video call, /quit exits.")
	if draft, ok := sess.LoadedDrafts()["message"]; ok {
		fmt.Fprintf(out, "[restored draft] %s\n", draft)
	}
	fmt.Fprint(out, "> ")

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/call":
			if err := sess.RequestVideoCall(); err != nil {
				fmt.Fprintf(errOut, "call request failed: %v\n", err)
			}
		case strings.HasPrefix(line, "/"):
			fmt.Fprintf(errOut, "unknown command %q\n", line)
		default:
			if _, err := sess.Send(context.Background(), line); err != nil {
				fmt.Fprintf(errOut, "send failed: %v\n", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func openBrowser(url string) error {
	for _, candidate := range [][]string{
		{"xdg-open", url},
		{"open", url},
	} {
		if _, err := exec.LookPath(candidate[0]); err == nil {
			return exec.Command(candidate[0], candidate[1]).Start()
		}
	}
	return errors.New("no browser opener available")
}
