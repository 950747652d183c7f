package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sbilibin2017/romako-counter/internal/client"
	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/models"
)

const helpText = `commands:
  login <name>              register a display name and start a session
  logout                    clear the session
  post <text>               post a greeting
  tab post|list|ranking     switch tab
  retry                     reload the active view
  whoami                    show the logged-in user
  help                      show this help
  quit                      exit`

func main() {
	serverURL, sessionPath := parseFlags()

	if err := logger.Initialize("warn", false); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, serverURL, sessionPath, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("client stopped with error: %v", err)
	}
}

// parseFlags returns the server base URL and the session file path.
func parseFlags() (string, string) {
	s := flag.String("server", "http://localhost:3001", "Server base URL")
	p := flag.String("session", client.DefaultSessionPath(), "Path to the session file")
	flag.Parse()
	return *s, *p
}

func run(ctx context.Context, serverURL, sessionPath string, in io.Reader, out io.Writer) error {
	socket, err := client.NewSocket(serverURL)
	if err != nil {
		return err
	}

	w := &syncWriter{w: out}
	api := client.NewAPIClient(serverURL, &http.Client{Timeout: 10 * time.Second})
	app := client.NewApp(api, &notifyingSocket{Broadcast: socket, out: w}, client.NewFileSessionStore(sessionPath))
	defer app.Close()

	if err := app.Start(ctx); err != nil {
		logger.Log.Warnw("failed to restore session", "error", err)
	}

	return repl(ctx, app, in, w)
}

// repl reads one command per line until quit, EOF or ctx is done.
func repl(ctx context.Context, app *client.App, in io.Reader, out io.Writer) error {
	if u := app.User(); u != nil {
		fmt.Fprintf(out, "おかえりなさい、%sさん\n", u.Name)
	}
	fmt.Fprintln(out, helpText)

	done := make(chan struct{})
	defer close(done)
	lines, scanErr := scanLines(in, done)

	for {
		fmt.Fprintf(out, "[%s]> ", app.Tab())

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			line = l
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch cmd {
		case "":
		case "login":
			msg, err := app.Login(ctx, arg)
			switch {
			case msg != "":
				fmt.Fprintln(out, msg)
			case err == nil:
				fmt.Fprintf(out, "ようこそ、%sさん\n", app.User().Name)
			}
		case "logout":
			if err := app.Logout(); err != nil {
				fmt.Fprintln(out, err)
			}
		case "post":
			msg, _ := app.Post(ctx, arg)
			fmt.Fprintln(out, msg)
		case "tab":
			if err := app.SwitchTab(ctx, client.Tab(strings.TrimSpace(arg))); err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			render(out, app)
		case "retry":
			if err := app.Retry(ctx); err != nil {
				logger.Log.Warnw("retry failed", "error", err)
			}
			render(out, app)
		case "whoami":
			if u := app.User(); u != nil {
				fmt.Fprintf(out, "%s (%s)\n", u.Name, u.ID)
			} else {
				fmt.Fprintln(out, client.MsgLoginRequired)
			}
		case "help":
			fmt.Fprintln(out, helpText)
		case "quit", "exit":
			return nil
		default:
			fmt.Fprintf(out, "unknown command %q\n", cmd)
		}
	}
}

// scanLines feeds lines from in until it is exhausted or done is closed.
func scanLines(in io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				errc <- nil
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

func render(out io.Writer, app *client.App) {
	switch app.Tab() {
	case client.TabList:
		client.RenderList(out, app.List, time.Local)
	case client.TabRanking:
		client.RenderRanking(out, app.Ranking, time.Local)
	}
}

// notifyingSocket prints every broadcast entry before handing it to the app.
type notifyingSocket struct {
	client.Broadcast
	out io.Writer
}

func (s *notifyingSocket) OnEntryCreated(fn func(models.Entry)) {
	s.Broadcast.OnEntryCreated(func(e models.Entry) {
		fmt.Fprintf(s.out, "\n%s\n", client.RenderEntry(e))
		fn(e)
	})
}

// syncWriter serialises writes from the prompt and the socket reader.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
