package main

import (
	"embed"
	"log/slog"
	"os"

	"github.com/chazu/forma/pkg/config"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

// configFile is read from the working directory; a missing file means defaults.
const configFile = "forma.yml"

func main() {
	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("load config", "path", configFile, "error", err)
		os.Exit(1)
	}
	log := cfg.Log.NewLogger()
	slog.SetDefault(log)

	app := NewAppWithConfig(cfg, log)

	err = wails.Run(&options.App{
		Title:  "Forma",
		Width:  1280,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup: app.startup,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.Error("wails run", "error", err)
		os.Exit(1)
	}
}
