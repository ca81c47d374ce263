// Command spotify-jukebox runs the single-user Spotify jukebox web server.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/justestif/go-spotify-jukebox/internal/auth"
	"github.com/justestif/go-spotify-jukebox/internal/config"
	"github.com/justestif/go-spotify-jukebox/internal/logging"
	"github.com/justestif/go-spotify-jukebox/internal/proxy"
	"github.com/justestif/go-spotify-jukebox/internal/spotify"
	"github.com/justestif/go-spotify-jukebox/internal/web"
	webfs "github.com/justestif/go-spotify-jukebox/web"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
	}
	for _, f := range config.Fields {
		flags = append(flags, &cli.StringFlag{
			Name:    f.Name,
			Usage:   f.Usage,
			Sources: cli.EnvVars(f.Env),
		})
	}

	return &cli.Command{
		Name:   "spotify-jukebox",
		Usage:  "Search Spotify and queue tracks from a browser",
		Flags:  flags,
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	for _, f := range config.Fields {
		if !cmd.IsSet(f.Name) {
			continue
		}
		if err := cfg.Set(f.Name, cmd.String(f.Name)); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(nil, cfg.Level())

	// Every Spotify round trip, token or API, shares this timeout.
	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}

	store := auth.NewCredentialStore()
	exchanger := auth.NewExchanger(store, auth.ExchangerConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		HTTPClient:   httpClient,
		Logger:       logger,
	})
	client := spotify.New(httpClient, "")

	// Create sub-filesystems for templates and static files
	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}

	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	server, err := web.NewServer(web.ServerConfig{
		Addr:        cfg.Addr(),
		Store:       store,
		Exchanger:   exchanger,
		Proxy:       proxy.New(store, client, exchanger, logger),
		TemplatesFS: templates,
		StaticFS:    static,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	logger.Info("jukebox ready", "addr", cfg.Addr(), "redirect_uri", cfg.RedirectURI)
	return server.Run()
}
