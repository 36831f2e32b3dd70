package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/bigkaa/goartstore/file-manager/internal/api/handlers"
	"github.com/bigkaa/goartstore/file-manager/internal/client"
	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
)

var uploadCmd = &cli.Command{
	Name:      "upload",
	Usage:     "загрузить файлы одним пакетом",
	ArgsUsage: "<path> [path...]",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "дождаться завершения пакета"},
		&cli.StringFlag{Name: "accept", Usage: "допустимые типы (image/*,application/pdf,.docx)"},
		&cli.StringFlag{Name: "max-size", Usage: "лимит размера файла (например 10MiB)"},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return cli.Exit("укажите хотя бы один файл", 2)
		}
		opts := client.UploadOptions{
			Accept: ctx.String("accept"),
			Wait:   ctx.Bool("wait"),
		}
		if raw := ctx.String("max-size"); raw != "" {
			n, err := humanize.ParseBytes(raw)
			if err != nil {
				return cli.Exit(fmt.Sprintf("некорректный --max-size: %v", err), 2)
			}
			opts.MaxSize = int64(n)
		}

		batch, err := newClient(ctx).Upload(ctx.Context, ctx.Args().Slice(), opts)
		if err != nil {
			return err
		}
		printBatch(os.Stdout, batch)
		return nil
	},
}

var listCmd = &cli.Command{
	Name:  "list",
	Usage: "список загруженных файлов",
	Action: func(ctx *cli.Context) error {
		resp, err := newClient(ctx).ListFiles(ctx.Context)
		if err != nil {
			return err
		}
		printFiles(os.Stdout, resp.Items)
		return nil
	},
}

var searchCmd = &cli.Command{
	Name:      "search",
	Usage:     "поиск файлов по имени или типу",
	ArgsUsage: "<query>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "session", Usage: "ID поисковой сессии"},
	},
	Action: func(ctx *cli.Context) error {
		res, err := newClient(ctx).Search(ctx.Context, ctx.Args().First(), ctx.String("session"))
		if err != nil {
			return err
		}
		printFiles(os.Stdout, res.Items)
		return nil
	},
}

var uploadsCmd = &cli.Command{
	Name:  "uploads",
	Usage: "активные загрузки",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "status", Usage: "только записи со статусом (pending, uploading, completed, error)"},
	},
	Action: func(ctx *cli.Context) error {
		resp, err := newClient(ctx).Uploads(ctx.Context, ctx.String("status"))
		if err != nil {
			return err
		}
		printUploads(os.Stdout, resp.Items)
		return nil
	},
}

var cancelCmd = &cli.Command{
	Name:      "cancel",
	Usage:     "отменить загрузку или убрать запись с ошибкой",
	ArgsUsage: "<fileId>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.Exit("укажите fileId", 2)
		}
		if err := newClient(ctx).Cancel(ctx.Context, ctx.Args().First()); err != nil {
			return err
		}
		fmt.Println("Загрузка удалена из очереди")
		return nil
	},
}

var deleteCmd = &cli.Command{
	Name:      "delete",
	Usage:     "удалить запись файла",
	ArgsUsage: "<id>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.Exit("укажите id", 2)
		}
		rec, err := newClient(ctx).DeleteFile(ctx.Context, ctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Printf("Удалён %s (%s)\n", rec.Name, humanize.IBytes(uint64(rec.Size)))
		return nil
	},
}

var clearCmd = &cli.Command{
	Name:  "clear",
	Usage: "остановить все загрузки и очистить очередь",
	Action: func(ctx *cli.Context) error {
		n, err := newClient(ctx).Clear(ctx.Context)
		if err != nil {
			return err
		}
		fmt.Printf("Удалено записей: %d\n", n)
		return nil
	},
}

var watchCmd = &cli.Command{
	Name:  "watch",
	Usage: "поток событий загрузки",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "batch", Usage: "только события пакета"},
	},
	Action: func(ctx *cli.Context) error {
		sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		return newClient(ctx).Watch(sigCtx, ctx.String("batch"), func(ev service.Event) error {
			printEvent(os.Stdout, ev)
			return nil
		})
	},
}

// --- Вывод ---

func printFiles(w io.Writer, files []model.FileRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tИМЯ\tТИП\tРАЗМЕР\tЗАГРУЖЕН")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.Name, f.Type, humanize.IBytes(uint64(f.Size)), humanize.Time(f.UploadDate))
	}
	_ = tw.Flush()
}

func printUploads(w io.Writer, entries []model.UploadQueueEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE ID\tИМЯ\tРАЗМЕР\tСТАТУС\tПРОГРЕСС\tСКОРОСТЬ\tОСТАЛОСЬ")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f%%\t%s/s\t%.1fs\n",
			e.FileID, e.FileName, humanize.IBytes(uint64(e.FileSize)), e.Status,
			e.Progress, humanize.IBytes(uint64(e.Speed)), e.TimeRemaining)
	}
	_ = tw.Flush()
}

func printBatch(w io.Writer, b *handlers.BatchResponse) {
	fmt.Fprintf(w, "Пакет %s: принято %d, отклонено %d\n", b.BatchID, b.Accepted, b.Rejected)
	for _, name := range b.RejectedFiles {
		fmt.Fprintf(w, "  отклонён: %s\n", name)
	}
	if b.Outcome == nil {
		fmt.Fprintf(w, "Состояние: fmctl watch --batch %s\n", b.BatchID)
		return
	}
	fmt.Fprintf(w, "Успешно: %d, сбоев: %d, отменено: %d\n",
		b.Outcome.Succeeded, b.Outcome.Failed, b.Outcome.Cancelled)
	for _, e := range b.Outcome.Errors {
		fmt.Fprintf(w, "  ошибка: %s\n", e)
	}
	if len(b.Outcome.Files) > 0 {
		printFiles(w, b.Outcome.Files)
	}
}

func printEvent(w io.Writer, ev service.Event) {
	ts := ev.At.Format("15:04:05.000")
	switch {
	case ev.Entry != nil && ev.Type == service.EventProgress:
		fmt.Fprintf(w, "%s %-13s %s %5.1f%% %s/s\n", ts, ev.Type, ev.Entry.FileName,
			ev.Entry.Progress, humanize.IBytes(uint64(ev.Entry.Speed)))
	case ev.File != nil:
		fmt.Fprintf(w, "%s %-13s %s (%s)\n", ts, ev.Type, ev.File.Name, humanize.IBytes(uint64(ev.File.Size)))
	case ev.Outcome != nil:
		fmt.Fprintf(w, "%s %-13s %s: успешно %d, сбоев %d, отменено %d\n", ts, ev.Type, ev.BatchID,
			ev.Outcome.Succeeded, ev.Outcome.Failed, ev.Outcome.Cancelled)
	case ev.Error != "":
		fmt.Fprintf(w, "%s %-13s %s: %s\n", ts, ev.Type, ev.FileID, ev.Error)
	default:
		fmt.Fprintf(w, "%s %-13s %s\n", ts, ev.Type, ev.FileID)
	}
}

