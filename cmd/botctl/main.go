// Command botctl administers the Telegram bots and the database from the
// shell. It reads the same environment as tevasul-server.
//
// Usage:
//
//	botctl [-bot main|accounting] <command> [flags]
//
// Commands:
//
//	set-webhook      register <TELEGRAM_WEBHOOK_URL>/telegram/webhook/<bot>
//	delete-webhook   remove the webhook (required before polling)
//	webhook-info     print the webhook state reported by Telegram
//	me               print the bot identity
//	set-commands     publish the bot command menu
//	config           write the bot's telegram_config row
//	migrate          apply database migrations
//	sync-moderators  rebuild the moderators table from profiles
//	report           push the daily or a monthly accounting report now
//
// Exit status is 0 on success, 1 on failure and 2 on a usage error.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/tevasul/tevasul-backend/internal/app"
	"github.com/tevasul/tevasul-backend/internal/config"
	"github.com/tevasul/tevasul-backend/internal/domain"
	"github.com/tevasul/tevasul-backend/internal/repo"
	"github.com/tevasul/tevasul-backend/internal/services"
	"github.com/tevasul/tevasul-backend/internal/sysutil"
	"github.com/tevasul/tevasul-backend/internal/telegram"
)

var errUsage = errors.New("usage")

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// mainCommands is the menu of the customer bot.
var mainCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start a voluntary return petition"},
	{Command: "cancel", Description: "Cancel the current petition"},
}

func main() {
	_ = godotenv.Load()
	sysutil.SetupLogger(os.Stderr, "botctl", os.Getenv("LOG_LEVEL"), true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, "botctl:", err)
		fmt.Fprintln(os.Stderr, "run 'botctl -h' for usage")
		stop()
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "botctl:", err)
		stop()
		os.Exit(1)
	}
}

type env struct {
	cfg config.Config
	bot string
	out io.Writer
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("botctl", flag.ContinueOnError)
	fs.SetOutput(out)
	bot := fs.String("bot", domain.BotMain, "bot to act on: main or accounting")
	fs.Usage = func() {
		fmt.Fprintln(out, "usage: botctl [-bot main|accounting] <command> [flags]")
		fmt.Fprintln(out, "commands: set-webhook delete-webhook webhook-info me set-commands config migrate sync-moderators report")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return usagef("%v", err)
	}
	if *bot != domain.BotMain && *bot != domain.BotAccounting {
		return usagef("unknown bot %q", *bot)
	}
	if fs.NArg() == 0 {
		return usagef("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	e := &env{cfg: cfg, bot: *bot, out: out}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "set-webhook":
		return e.setWebhook(ctx, rest)
	case "delete-webhook":
		return e.deleteWebhook(ctx, rest)
	case "webhook-info":
		return e.withClient(rest, func(c *telegram.Client) error {
			info, err := c.WebhookInfo(ctx)
			if err != nil {
				return err
			}
			return e.print(info)
		})
	case "me":
		return e.withClient(rest, func(c *telegram.Client) error {
			me, err := c.Me(ctx)
			if err != nil {
				return err
			}
			return e.print(me)
		})
	case "set-commands":
		return e.withClient(rest, func(c *telegram.Client) error {
			cmds := mainCommands
			if e.bot == domain.BotAccounting {
				cmds = services.AccountingCommands
			}
			if err := c.SetCommands(ctx, cmds); err != nil {
				return err
			}
			fmt.Fprintf(out, "published %d commands for @%s\n", len(cmds), c.Username())
			return nil
		})
	case "config":
		return e.writeConfig(ctx, rest)
	case "migrate":
		return e.migrate(rest)
	case "sync-moderators":
		return e.syncModerators(ctx, rest)
	case "report":
		return e.report(ctx, rest)
	default:
		return usagef("unknown command %q", cmd)
	}
}

func (e *env) token() string {
	if e.bot == domain.BotAccounting {
		return e.cfg.Accounting.BotToken
	}
	return e.cfg.Telegram.BotToken
}

func (e *env) secret() string {
	if e.bot == domain.BotAccounting {
		return e.cfg.Accounting.WebhookSecret
	}
	return e.cfg.Telegram.WebhookSecret
}

func (e *env) client() (*telegram.Client, error) {
	tok := e.token()
	if tok == "" {
		return nil, fmt.Errorf("no token configured for the %s bot", e.bot)
	}
	return telegram.New(tok, telegram.Options{Endpoint: e.cfg.Telegram.APIEndpoint, Name: e.bot})
}

// withClient runs fn for commands that take no flags of their own.
func (e *env) withClient(args []string, fn func(*telegram.Client) error) error {
	if len(args) > 0 {
		return usagef("unexpected arguments %q", args)
	}
	c, err := e.client()
	if err != nil {
		return err
	}
	return fn(c)
}

func (e *env) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *env) setWebhook(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-webhook", flag.ContinueOnError)
	fs.SetOutput(e.out)
	base := fs.String("url", "", "public base URL (default TELEGRAM_WEBHOOK_URL)")
	drop := fs.Bool("drop-pending", false, "drop updates queued while no webhook was set")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	root := strings.TrimRight(sysutil.FirstNonEmpty(*base, e.cfg.Telegram.WebhookURL), "/")
	if root == "" {
		return usagef("no webhook URL: pass -url or set TELEGRAM_WEBHOOK_URL")
	}
	if !strings.HasPrefix(root, "https://") {
		return usagef("webhook URL must be https, got %q", root)
	}
	if e.secret() == "" {
		return fmt.Errorf("no webhook secret configured for the %s bot", e.bot)
	}
	c, err := e.client()
	if err != nil {
		return err
	}
	url := root + "/telegram/webhook/" + e.bot
	if err := c.SetWebhook(ctx, url, e.secret(), *drop); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "webhook for @%s set to %s\n", c.Username(), url)
	return nil
}

func (e *env) deleteWebhook(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete-webhook", flag.ContinueOnError)
	fs.SetOutput(e.out)
	drop := fs.Bool("drop-pending", false, "drop queued updates")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	c, err := e.client()
	if err != nil {
		return err
	}
	if err := c.DeleteWebhook(ctx, *drop); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "webhook for @%s deleted\n", c.Username())
	return nil
}

func (e *env) open() (*gorm.DB, error) {
	return repo.Open(e.cfg.DB.Driver, e.cfg.DB.Path, e.cfg.DB.URL)
}

func (e *env) writeConfig(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(e.out)
	chat := fs.String("chat", "", "admin chat id that receives notifications")
	enabled := fs.Bool("enabled", true, "whether the row is active")
	storeToken := fs.Bool("store-token", false, "also store the configured bot token in the row")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if *chat == "" {
		return usagef("config needs -chat")
	}
	if _, err := strconv.ParseInt(*chat, 10, 64); err != nil {
		return usagef("chat id %q is not numeric", *chat)
	}
	db, err := e.open()
	if err != nil {
		return err
	}
	row := &domain.TelegramConfig{Purpose: e.bot, AdminChatID: *chat, IsEnabled: *enabled}
	switch prev, err := repo.GetTelegramConfig(ctx, db, e.bot); {
	case *storeToken:
		row.BotToken = e.token()
	case err == nil:
		row.BotToken = prev.BotToken
	case !errors.Is(err, repo.ErrNotFound):
		return err
	}
	if err := repo.UpsertTelegramConfig(ctx, db, row); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "telegram_config %s: chat %s, enabled %t\n", e.bot, *chat, *enabled)
	return nil
}

func (e *env) migrate(args []string) error {
	if len(args) > 0 {
		return usagef("unexpected arguments %q", args)
	}
	db, err := e.open()
	if err != nil {
		return err
	}
	if err := app.Migrate(e.cfg, db); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s schema is up to date\n", e.cfg.DB.Driver)
	return nil
}

func (e *env) syncModerators(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return usagef("unexpected arguments %q", args)
	}
	db, err := e.open()
	if err != nil {
		return err
	}
	res, err := services.NewModeratorService(db).Sync(ctx)
	if err != nil {
		return err
	}
	return e.print(res)
}

// report sends an accounting report through the accounting bot whatever
// -bot says.
func (e *env) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(e.out)
	month := fs.Int("month", 0, "month of the monthly report (default current)")
	year := fs.Int("year", 0, "year of the monthly report (default current)")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if fs.NArg() != 1 || (fs.Arg(0) != "daily" && fs.Arg(0) != "monthly") {
		return usagef("report needs daily or monthly")
	}
	kind := fs.Arg(0)
	if *month < 0 || *month > 12 || (*year != 0 && (*year < 2000 || *year > 2100)) {
		return usagef("month must be 1-12 and year 2000-2100")
	}
	if kind == "daily" && (*month != 0 || *year != 0) {
		return usagef("-month and -year only apply to the monthly report")
	}

	e.bot = domain.BotAccounting
	c, err := e.client()
	if err != nil {
		return err
	}
	db, err := e.open()
	if err != nil {
		return err
	}
	svc := services.NewAccountingService(db, c, nil, e.cfg.Accounting.SessionTTL, e.cfg.Location(), "")

	var res services.BroadcastResult
	if kind == "daily" {
		res, err = svc.SendDailyReport(ctx)
	} else {
		res, err = svc.SendMonthlyReport(ctx, *year, time.Month(*month))
	}
	if err != nil {
		return err
	}
	return e.print(res)
}
