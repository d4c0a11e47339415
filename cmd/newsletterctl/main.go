package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	waBinary "go.mau.fi/whatsmeow/binary"
	"go.mau.fi/whatsmeow/types"

	"github.com/danmuck/newsletter/internal/config"
	"github.com/danmuck/newsletter/internal/decrypt"
	"github.com/danmuck/newsletter/internal/logging"
	"github.com/danmuck/newsletter/internal/newsletter"
	"github.com/danmuck/newsletter/internal/observability"
	"github.com/danmuck/newsletter/internal/transport"
)

const usage = `usage: newsletterctl [-config path] <command> [args]

commands:
  metadata <jid|invite>
  messages <jid|invite> [count]
  updates <jid> [count]
  live <jid>
  follow|unfollow|mute|unmute <jid>
  admins <jid>
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "newsletterctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("newsletterctl", flag.ContinueOnError)
	configPath := fs.String("config", "cmd/newsletterctl/config.toml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	cmd, err := parseCommand(fs.Args())
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := logging.ConfigureRuntime("newsletterctl")
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok && os.Getenv(logging.EnvLogLevel) == "" {
		zerolog.SetGlobalLevel(lvl)
		logger = logger.Level(lvl)
	}
	if cmd.count == 0 {
		cmd.count = cfg.FetchCount
	}

	observability.RegisterMetrics()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	conn, err := transport.Dial(ctx, cfg.Transport, notificationLogger(logger), logger)
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.Transport.Address, err)
	}
	defer conn.Close()

	client := newsletter.NewClient(conn, decrypt.NewPlaintext(logger), cfg.Self, logger)
	out, err := cmd.execute(ctx, client)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type command struct {
	name  string
	key   string
	count int
}

func parseCommand(args []string) (command, error) {
	if len(args) < 2 {
		return command{}, fmt.Errorf("%w: command and target required", errUsage)
	}
	cmd := command{name: args[0], key: strings.TrimSpace(args[1])}
	switch cmd.name {
	case "messages", "updates":
		if len(args) > 3 {
			return command{}, fmt.Errorf("%w: too many arguments for %s", errUsage, cmd.name)
		}
		if len(args) == 3 {
			n, err := strconv.Atoi(args[2])
			if err != nil || n <= 0 {
				return command{}, fmt.Errorf("%w: count must be a positive integer, got %q", errUsage, args[2])
			}
			cmd.count = n
		}
	case "metadata", "live", "follow", "unfollow", "mute", "unmute", "admins":
		if len(args) != 2 {
			return command{}, fmt.Errorf("%w: %s takes exactly one argument", errUsage, cmd.name)
		}
	default:
		return command{}, fmt.Errorf("%w: unknown command %q", errUsage, cmd.name)
	}
	return cmd, nil
}

// keyType treats anything that is not a newsletter JID as an invite code.
func (c command) keyType() newsletter.MetadataKeyType {
	if strings.HasSuffix(c.key, "@"+types.NewsletterServer) {
		return newsletter.KeyJID
	}
	return newsletter.KeyInvite
}

func (c command) jid() (types.JID, error) {
	jid, err := types.ParseJID(c.key)
	if err != nil {
		return types.EmptyJID, err
	}
	if jid.Server != types.NewsletterServer {
		return types.EmptyJID, fmt.Errorf("%q is not a newsletter jid", c.key)
	}
	return jid, nil
}

func (c command) execute(ctx context.Context, client *newsletter.Client) (any, error) {
	switch c.name {
	case "metadata":
		return client.Metadata(ctx, c.keyType(), c.key, newsletter.RoleGuest)
	case "messages":
		return client.FetchMessages(ctx, c.keyType(), c.key, c.count, 0)
	}

	jid, err := c.jid()
	if err != nil {
		return nil, err
	}
	switch c.name {
	case "updates":
		return client.FetchUpdates(ctx, jid, c.count, 0, 0)
	case "live":
		d, err := client.SubscribeLiveUpdates(ctx, jid)
		if err != nil {
			return nil, err
		}
		return map[string]any{"jid": jid, "duration": d.String()}, nil
	case "admins":
		n, err := client.AdminCount(ctx, jid)
		if err != nil {
			return nil, err
		}
		return map[string]any{"jid": jid, "admin_count": n}, nil
	}

	var action func(context.Context, types.JID) error
	switch c.name {
	case "follow":
		action = client.Follow
	case "unfollow":
		action = client.Unfollow
	case "mute":
		action = client.Mute
	case "unmute":
		action = client.Unmute
	default:
		return nil, fmt.Errorf("%w: unknown command %q", errUsage, c.name)
	}
	if err := action(ctx, jid); err != nil {
		return nil, err
	}
	return map[string]any{"jid": jid, "ok": true}, nil
}

func notificationLogger(logger zerolog.Logger) transport.NotificationHandler {
	return func(node *waBinary.Node) {
		n, ok, err := newsletter.ParseMexNotification(node)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("bad newsletter notification")
		case ok:
			logger.Info().Str("operation", string(n.Operation)).Interface("notification", n).Msg("newsletter notification")
		default:
			logger.Debug().Str("tag", node.Tag).Msg("ignored inbound node")
		}
	}
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn().Err(err).Msg("metrics server stopped")
	}
}
