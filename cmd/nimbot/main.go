package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/nimctl/internal/bot"
	"github.com/danmuck/nimctl/internal/observability"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "bot config TOML (optional)")
	addr := flag.String("addr", "", "server address, overrides config")
	name := flag.String("name", "", "display name, overrides config")
	strategy := flag.String("strategy", "", "optimal|first, overrides config")
	games := flag.Int("games", 0, "games to play, overrides config")
	flag.Parse()

	logger := observability.InitLogger("nimbot")

	cfg := defaultRunConfig()
	if *configPath != "" {
		loaded, err := loadRunConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "nimbot: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
		zerolog.SetGlobalLevel(cfg.LogLevel)
	}

	if *addr != "" {
		cfg.Bot.Address = *addr
	}
	if *name != "" {
		cfg.Bot.Name = *name
	}
	if *strategy != "" {
		cfg.Bot.Strategy = bot.Strategy(*strategy)
	}
	if *games > 0 {
		cfg.Bot.Games = *games
	}

	client, err := bot.NewClient(cfg.Bot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nimbot: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcomes, err := client.Run(ctx)
	wins := 0
	for _, o := range outcomes {
		if o.Won {
			wins++
		}
	}
	logger.Info().Int("games", len(outcomes)).Int("wins", wins).Msg("nimbot.done")
	if err != nil {
		fmt.Fprintf(os.Stderr, "nimbot: %v\n", err)
		os.Exit(1)
	}
}
