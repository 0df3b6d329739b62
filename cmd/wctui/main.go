package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/gindriliunas/whatsapp-clone/internal/app"
	"github.com/gindriliunas/whatsapp-clone/internal/config"
	"github.com/gindriliunas/whatsapp-clone/internal/paths"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profile := resolveProfile(*profileFlag)
	if err := paths.ValidateProfileName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fx.New(
		app.Module(app.Params{Profile: profile}),
		fx.NopLogger, // the TUI owns the terminal; fx chatter goes nowhere useful
	).Run()
}

func resolveProfile(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	cfg, err := config.Load(paths.ConfigPath())
	if err != nil {
		return "main"
	}
	return cfg.DefaultProfile
}
