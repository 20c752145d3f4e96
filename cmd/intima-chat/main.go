package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/thewijay/intima-chat/internal/adapters/httpapi"
	"github.com/thewijay/intima-chat/internal/adapters/storage"
	"github.com/thewijay/intima-chat/internal/config"
	"github.com/thewijay/intima-chat/internal/core/domain"
	"github.com/thewijay/intima-chat/internal/core/services"
)

func main() {
	// Logs go to stderr so chat output owns stdout.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if err := run(logger); err != nil {
		logger.Error("client exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	cfg := config.FromEnv(logger)

	secret, err := config.NewSecretKey()
	if err != nil {
		return fmt.Errorf("init secret key: %w", err)
	}
	store, err := storage.Open(cfg, secret)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if closer, ok := store.(io.Closer); ok {
			closer.Close()
		}
	}()

	session := services.NewSession(logger, store)
	auth := services.NewAuth(logger, store, session)
	api := httpapi.New(cfg, auth)
	client := services.NewClient(logger, api, session, auth)

	if tok := os.Getenv("INTIMA_TOKEN"); tok != "" {
		if err := auth.Login(ctx, tok); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}

	if err := client.Start(ctx); err != nil {
		if errors.Is(err, domain.ErrAuthExpired) {
			return fmt.Errorf("session expired, set INTIMA_TOKEN and log in again: %w", err)
		}
		return err
	}
	printMessages(session.Messages())

	lines := make(chan string)
	g, gCtx := errgroup.WithContext(ctx)

	// The reader stays outside the errgroup: a blocked stdin read would
	// otherwise hold up shutdown. Process exit reclaims it.
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-gCtx.Done():
				return
			}
		}
	}()

	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					cancel()
					return nil
				}
				if err := handleLine(gCtx, logger, client, cfg, line); err != nil {
					if errors.Is(err, errQuit) {
						cancel()
						return nil
					}
					return err
				}
			}
		}
	})

	return g.Wait()
}

var errQuit = errors.New("quit")

func handleLine(ctx context.Context, logger *slog.Logger, client *services.Client, cfg config.Config, line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "/quit" || line == "/exit":
		return errQuit
	case line == "/new":
		client.StartNew(ctx)
		fmt.Println("-- new conversation --")
		return nil
	case line == "/list":
		if err := client.Conversations().Refresh(ctx); err != nil {
			return authHint(err)
		}
		for _, c := range client.Conversations().List() {
			marker := "  "
			if c.ConversationID == client.Session().CurrentConversationID() {
				marker = "* "
			}
			fmt.Printf("%s%s  %s (%s)\n", marker, c.ConversationID, c.Title, c.LastUpdated.Local().Format("2006-01-02 15:04"))
		}
		return nil
	case strings.HasPrefix(line, "/switch "):
		id := domain.ConversationID(strings.TrimSpace(strings.TrimPrefix(line, "/switch ")))
		if _, err := client.SwitchTo(ctx, id); err != nil {
			return authHint(err)
		}
		printMessages(client.Session().Messages())
		return nil
	case line == "/logout":
		if err := client.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("-- logged out --")
		return nil
	case strings.HasPrefix(line, "/"):
		fmt.Println("commands: /new /list /switch <id> /logout /quit")
		return nil
	}

	bot, err := client.Send(ctx, line, services.SendOptions{Model: cfg.Model, Limit: cfg.Limit})
	if err != nil {
		logger.Warn("send did not succeed", "error", err)
	}
	if bot.Text != "" {
		printMessage(bot)
	}
	return nil
}

// authHint maps token expiry onto actionable output; everything else passes
// through.
func authHint(err error) error {
	if errors.Is(err, domain.ErrAuthExpired) || errors.Is(err, domain.ErrAuthRequired) {
		return fmt.Errorf("set INTIMA_TOKEN and restart: %w", err)
	}
	return err
}

func printMessages(msgs []domain.Message) {
	for _, m := range msgs {
		printMessage(m)
	}
}

func printMessage(m domain.Message) {
	tag := "you"
	if m.Sender == domain.SenderBot {
		tag = "bot"
	}
	fmt.Printf("[%s] %s: %s\n", m.Time, tag, m.Text)
	if len(m.Sources) > 0 {
		fmt.Printf("       sources: %s\n", strings.Join(m.Sources, ", "))
	}
}
