// bidi generates scraper-resistant markup and BiDi captcha widgets, and
// serves both over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/defenra/bidi/captcha"
	"github.com/defenra/bidi/config"
	"github.com/defenra/bidi/dialect"
	"github.com/defenra/bidi/inject"
	"github.com/defenra/bidi/obfuscator"
	"github.com/defenra/bidi/server"
	"github.com/defenra/bidi/stats"
	"github.com/defenra/bidi/utils"
)

var (
	configPath = flag.String("config", "", "path to profile (.toml, .yaml, .json)")
	outPath    = flag.String("out", "", "write generated code to this file instead of stdout")
	preview    = flag.Bool("preview", false, "print the highlighted HTML preview instead of raw code")
	simulate   = flag.Bool("simulate", false, "print what a scraper and a human would read")
	anchor     = flag.String("anchor", "", "inject after this tag or marker (default from profile)")
	kind       = flag.String("kind", "captcha", "what inject embeds: captcha or obfuscate")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "obfuscate":
		err = cmdObfuscate(strings.Join(flag.Args()[1:], " "))
	case "captcha":
		err = cmdCaptcha()
	case "scrape":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: bidi scrape <file.html> [payload]")
			os.Exit(1)
		}
		err = cmdScrape(flag.Arg(1), flag.Arg(2))
	case "inject":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: bidi inject <page.html>")
			os.Exit(1)
		}
		err = cmdInject(flag.Arg(1))
	case "watch":
		err = cmdWatch()
	case "serve":
		err = cmdServe()
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `bidi - Scraper-resistant text and BiDi captcha generator

Usage: bidi [options] <command> [args]

Commands:
  obfuscate [text]          Emit fragmented markup for text (default: profile payload)
  captcha                   Emit the BiDi captcha widget
  scrape <file> [payload]   Show what a non-rendering scraper reads from markup
  inject <page.html>        Insert a generated snippet into a page
  watch                     Regenerate on every profile change
  serve                     Run the HTTP API
  help                      Show this help message

Options:
  -config <path>   Profile file (.toml, .yaml, .json)
  -out <path>      Write output to a file
  -preview         Print the highlighted preview
  -simulate        Print the scraper simulation
  -anchor <tag>    Injection anchor (default <body>)
  -kind <kind>     inject: captcha or obfuscate

Environment overrides: BIDI_PAYLOAD, BIDI_ENTROPY, BIDI_CLOAK, BIDI_DIALECT,
BIDI_SPEED_BUMP, BIDI_LISTEN, BIDI_LUA_RULES and friends.`)
}

func loadProfile() (*config.Profile, error) {
	p, err := config.LoadFile(*configPath)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func writeOutput(s string) error {
	if *outPath == "" {
		_, err := io.WriteString(os.Stdout, s)
		return err
	}
	return os.WriteFile(*outPath, []byte(s), 0o644)
}

func cmdObfuscate(text string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	if text == "" {
		text = p.Payload
	}
	if text == "" {
		return fmt.Errorf("nothing to obfuscate: pass text or set payload in the profile")
	}

	out, tree := obfuscator.Build(text, p.Obfuscation)
	stats.IncObfuscations()

	if *simulate {
		return printJSON(obfuscator.Simulate(tree, text))
	}
	if *preview {
		return writeOutput(out.PreviewHTML + "\n")
	}
	return writeOutput(out.Raw + "\n")
}

func cmdCaptcha() error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	code := captcha.Emit(p.Challenge)
	stats.IncCaptchas()
	if *preview {
		return writeOutput(obfuscator.Highlight(code) + "\n")
	}
	return writeOutput(code + "\n")
}

func cmdScrape(path, payload string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read markup: %w", err)
	}

	if payload == "" {
		text, err := obfuscator.ScrapeHTML(string(raw))
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	}

	sim, err := obfuscator.SimulateHTML(string(raw), payload)
	if err != nil {
		return err
	}
	return printJSON(sim)
}

func cmdInject(path string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	page, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}

	var snippet string
	switch *kind {
	case "captcha":
		cfg := p.Challenge
		cfg.OutputDialect = dialect.Plain
		snippet = captcha.Emit(cfg)
	case "obfuscate":
		if p.Payload == "" {
			return fmt.Errorf("inject -kind obfuscate needs a profile payload")
		}
		cfg := p.Obfuscation
		cfg.OutputDialect = dialect.Plain
		snippet = obfuscator.Obfuscate(p.Payload, cfg).Raw
	default:
		return fmt.Errorf("unknown inject kind %q", *kind)
	}

	a := *anchor
	if a == "" {
		a = p.Server.InjectAnchor
	}
	out, injected, err := inject.Inject(page, a, []byte(snippet))
	if err != nil {
		return err
	}
	if !injected {
		log.Printf("[Inject] Anchor %q not found, page unchanged", a)
	} else {
		stats.IncInjections()
	}
	return writeOutput(string(out))
}

// cmdWatch regenerates the profile payload's markup on every save
func cmdWatch() error {
	if *configPath == "" {
		return fmt.Errorf("watch needs -config")
	}

	loader := config.NewLoader(*configPath)
	p, err := loader.Load()
	if err != nil {
		return err
	}
	defer loader.Close()

	regenerate := func(p *config.Profile) {
		if p.Payload == "" {
			log.Println("[Watch] Profile has no payload, nothing to generate")
			return
		}
		if err := writeOutput(obfuscator.Obfuscate(p.Payload, p.Obfuscation).Raw + "\n"); err != nil {
			log.Printf("[Watch] Failed to write output: %v", err)
			return
		}
		stats.IncObfuscations()
	}
	regenerate(p)

	loader.OnChange(regenerate)
	if err := loader.Watch(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	utils.SafeGo(func() { logReloadErrors(ctx, loader) }, "watch-errors")
	log.Printf("[Watch] Watching %s", *configPath)
	<-ctx.Done()
	return nil
}

func cmdServe() error {
	loader := config.NewLoader(*configPath)
	p, err := loader.Load()
	if err != nil {
		return err
	}
	defer loader.Close()

	srv, err := server.New(p, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *configPath != "" {
		loader.OnChange(func(p *config.Profile) {
			if err := srv.Apply(p); err != nil {
				log.Printf("[Config] Keeping previous profile: %v", err)
			}
		})
		if err := loader.Watch(); err != nil {
			log.Printf("[Config] Hot reload disabled: %v", err)
		} else {
			utils.SafeGo(func() { logReloadErrors(ctx, loader) }, "reload-errors")
		}
	}

	return srv.Run(ctx)
}

func logReloadErrors(ctx context.Context, loader *config.Loader) {
	for {
		select {
		case err := <-loader.Errors():
			log.Printf("[Config] %v", err)
		case <-ctx.Done():
			return
		}
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(string(data) + "\n")
}
