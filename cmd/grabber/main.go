// Command grabber saves every video on a page, subject to the same usage
// limit and license as the web app.
//
//	grabber -url https://example.com/watch [-out DIR] [-code CODE] [-headless=false]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"vidgrab/internal/app"
	"vidgrab/internal/config"
	"vidgrab/internal/download"
	apperrors "vidgrab/internal/errors"
	"vidgrab/internal/infrastructure"
	"vidgrab/internal/services"
	"vidgrab/internal/store"
)

func main() {
	pageURL := flag.String("url", "", "page to grab videos from (required)")
	outDir := flag.String("out", "", "directory to save into (defaults to download.output_dir)")
	code := flag.String("code", "", "license code to verify before grabbing")
	headless := flag.Bool("headless", true, "run browser headless")
	flag.Parse()

	if *pageURL == "" {
		fmt.Fprintln(os.Stderr, "grabber: -url is required")
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "grabber: load config:", err)
		os.Exit(1)
	}
	if *outDir != "" {
		cfg.Download.OutputDir = *outDir
	}
	cfg.Browser.Headless = *headless
	logger := infrastructure.InitializeLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *pageURL, *code, os.Stdin, os.Stdout, logger); err != nil {
		logger.Error("grab failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, pageURL, code string, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	st, err := store.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	lic, err := app.NewLicensing(ctx, st, cfg, nil, logger)
	if err != nil {
		return err
	}

	notifier := download.NotifierFunc(func(ctx context.Context, n download.Notice) {
		fmt.Fprintf(stdout, "! %s (%s)\n", n.Message, n.Filename)
	})
	g, err := app.NewGrabber(ctx, cfg, lic, notifier, nil, logger)
	if err != nil {
		return err
	}
	defer g.Close()

	prompt := &codePrompt{in: bufio.NewScanner(stdin), out: stdout}
	if code != "" {
		if ok, err := verify(ctx, lic.Service, code); err != nil {
			return err
		} else if !ok {
			return errors.New("license code rejected")
		}
	}

	page, err := g.Loader.Load(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("load page: %w", err)
	}
	fmt.Fprintf(stdout, "%s: %d video(s)\n", page.URL(), len(page.Videos))

	for i, el := range page.Videos {
		for {
			res, err := g.Grab.Grab(ctx, services.Target{Element: el, Page: page})
			if errors.Is(err, apperrors.ErrAuthorizationRequired) {
				entered, ok := prompt.ask()
				if !ok {
					return err
				}
				if authorized, verr := verify(ctx, lic.Service, entered); verr != nil {
					return verr
				} else if !authorized {
					fmt.Fprintln(stdout, "code rejected")
				}
				continue
			}
			if err != nil {
				return err
			}
			report(stdout, i, res)
			break
		}
	}
	return nil
}

func verify(ctx context.Context, svc *services.LicenseService, code string) (bool, error) {
	res, err := svc.VerifyAuthCode(ctx, code, "")
	if err != nil {
		return false, err
	}
	return res.Authorized, nil
}

func report(w io.Writer, i int, res services.GrabResult) {
	switch {
	case res.Outcome.Saved:
		fmt.Fprintf(w, "[%d] saved %s via %s (%d bytes)\n", i, res.Outcome.Path, res.Outcome.Strategy, res.Outcome.Bytes)
	case res.SourceURL == "":
		fmt.Fprintf(w, "[%d] no source found\n", i)
	default:
		fmt.Fprintf(w, "[%d] failed %s\n", i, res.SourceURL)
	}
}

// codePrompt asks for license codes on an interactive input.
type codePrompt struct {
	in  *bufio.Scanner
	out io.Writer
}

// ask reports false when the input is exhausted or the user enters nothing.
func (p *codePrompt) ask() (string, bool) {
	fmt.Fprint(p.out, "Download limit reached. Enter license code: ")
	if !p.in.Scan() {
		return "", false
	}
	code := strings.TrimSpace(p.in.Text())
	return code, code != ""
}
