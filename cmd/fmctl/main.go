// fmctl — утилита командной строки для File Manager.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bigkaa/goartstore/file-manager/internal/client"
	"github.com/bigkaa/goartstore/file-manager/internal/config"
)

func main() {
	app := &cli.App{
		Name:    "fmctl",
		Usage:   "управление очередью загрузки и каталогом файлов File Manager",
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:8080",
				EnvVars: []string{"FMCTL_SERVER"},
				Usage:   "адрес File Manager",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "таймаут обычных запросов",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "подробный лог клиента",
			},
		},
		Commands: []*cli.Command{
			uploadCmd,
			listCmd,
			searchCmd,
			uploadsCmd,
			cancelCmd,
			deleteCmd,
			clearCmd,
			watchCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

// newClient создаёт HTTP-клиент по глобальным флагам.
func newClient(ctx *cli.Context) *client.Client {
	level := slog.LevelWarn
	if ctx.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return client.New(ctx.String("server"), ctx.Duration("timeout"), logger)
}
