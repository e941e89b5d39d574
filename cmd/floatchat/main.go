package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/floatchat/floatchat/pkg/config"
	"github.com/floatchat/floatchat/pkg/logger"
	"github.com/floatchat/floatchat/pkg/server"
	"github.com/floatchat/floatchat/pkg/tui"
	"github.com/floatchat/floatchat/pkg/widget"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:     "floatchat",
		Short:   "floatchat - embeddable webhook chat widget",
		Version: version,
		Long: `floatchat hosts a floating chat widget backed by any webhook endpoint.

Run it in the terminal, or serve it as an embeddable browser page.`,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "config file path")

	root.AddCommand(tuiCmd(&configPath))
	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(configCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func tuiCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the widget in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Widget.APIURL == "" {
				return fmt.Errorf("no webhook configured; set widget.api_url with 'floatchat config set widget.api_url <url>'")
			}

			// The widget owns the terminal; logs would corrupt the screen.
			logger.Silence()

			w := widget.New(cfg.Widget)
			defer w.Destroy()

			return tui.New(cfg, w).Run()
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	var qr bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the widget as an embeddable browser page",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Widget.APIURL == "" {
				return fmt.Errorf("no webhook configured; set widget.api_url with 'floatchat config set widget.api_url <url>'")
			}

			w := widget.New(cfg.Widget)
			defer w.Destroy()

			s := server.New(cfg.Server, w)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := s.Start(ctx); err != nil {
				return err
			}

			fmt.Printf("floatchat serving at %s\n", s.URL())
			if qr {
				qrterminal.GenerateWithConfig(s.URL(), qrterminal.Config{
					Level:      qrterminal.L,
					Writer:     os.Stdout,
					HalfBlocks: true,
					QuietZone:  1,
				})
			}

			<-ctx.Done()
			fmt.Println("\nshutting down")
			return s.Stop(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&qr, "qr", false, "print a QR code for the serving URL")
	return cmd
}

func configCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the floatchat configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(*configPath); err == nil {
				return fmt.Errorf("config already exists at %s", *configPath)
			}
			if err := config.SaveConfig(*configPath, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", *configPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value, e.g. 'config set widget.api_url https://...'",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := setConfigKey(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := config.SaveConfig(*configPath, cfg); err != nil {
				return err
			}
			fmt.Printf("set %s = %s\n", args[0], args[1])
			return nil
		},
	})

	return cmd
}

func setConfigKey(cfg *config.Config, key, value string) error {
	switch key {
	case "widget.api_url":
		cfg.Widget.APIURL = value
	case "widget.position":
		if value != config.PositionBottomLeft && value != config.PositionBottomRight {
			return fmt.Errorf("position must be %q or %q", config.PositionBottomLeft, config.PositionBottomRight)
		}
		cfg.Widget.Position = value
	case "widget.theme_color":
		cfg.Widget.ThemeColor = value
	case "widget.title":
		cfg.Widget.Title = value
	case "widget.placeholder":
		cfg.Widget.Placeholder = value
	case "widget.welcome_message":
		cfg.Widget.WelcomeMessage = value
	case "widget.width":
		return setInt(&cfg.Widget.Width, value)
	case "widget.height":
		return setInt(&cfg.Widget.Height, value)
	case "widget.resizable":
		return setBool(&cfg.Widget.Resizable, value)
	case "widget.typing_speed_ms":
		return setInt(&cfg.Widget.TypingSpeedMS, value)
	case "widget.max_message_length":
		return setInt(&cfg.Widget.MaxMessageLength, value)
	case "widget.enable_file_upload":
		return setBool(&cfg.Widget.EnableFileUpload, value)
	case "widget.max_file_size":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		cfg.Widget.MaxFileSize = n
	case "widget.allowed_file_types":
		cfg.Widget.AllowedFileTypes = splitList(value)
	case "server.host":
		cfg.Server.Host = value
	case "server.port":
		return setInt(&cfg.Server.Port, value)
	case "server.username":
		cfg.Server.Username = value
	case "server.password":
		cfg.Server.Password = value
	case "server.allow_from":
		cfg.Server.AllowFrom = splitList(value)
	case "tui.mouse":
		return setBool(&cfg.TUI.Mouse, value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setBool(dst *bool, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
