// Command client is a terminal client for the canvas gateway: it streams a
// conversation, mirrors the design document locally, and can export the
// canvas to PNG, JPEG, or SVG.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"canvasmith/internal/canvas"
	"canvasmith/internal/client"
	"canvasmith/internal/design"
	"canvasmith/internal/wire"
)

func main() {
	url := flag.String("url", "ws://localhost:8081/ws", "gateway websocket URL")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := &cli{log: log}

	c, err := client.Connect(ctx, client.Config{
		URL:     *url,
		Rebuild: app.rebuild,
		Log:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect failed")
	}
	defer c.Close()
	app.client = c

	go func() {
		if err := c.Listen(ctx, app.onEvent); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("connection lost")
		}
		cancel()
	}()

	fmt.Println("Connected. Type a message, or /help for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		if err := app.handle(line); err != nil {
			fmt.Println("! " + err.Error())
		}
	}
}

type cli struct {
	client *client.Client
	log    zerolog.Logger

	mu      sync.Mutex
	design  *design.Design
	scene   *canvas.Scene
	printed int
}

// rebuild runs on every design change pushed by the server.
func (a *cli) rebuild(d *design.Design) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.design = d
	a.scene = canvas.BuildScene(d, a.scene)
}

// onEvent prints timeline entries as they land.
func (a *cli) onEvent(st client.State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for ; a.printed < len(st.Timeline); a.printed++ {
		e := st.Timeline[a.printed]
		switch e.Kind {
		case client.EntryAssistant:
			fmt.Println("assistant> " + e.Text)
		case client.EntryToolCall:
			fmt.Printf("  [tool] %s %s\n", e.Tool, e.Text)
		case client.EntryNotice:
			fmt.Println("  * " + e.Text)
		case client.EntryError:
			fmt.Println("  ! server error: " + e.Text)
		}
	}
	if st.Plan != nil && st.Plan.Status == "proposed" {
		fmt.Printf("  * plan %s proposed (%s): /plan approve or /plan reject <feedback>\n", st.Plan.ID, st.Plan.DesignType)
	}
}

func (a *cli) handle(line string) error {
	if !strings.HasPrefix(line, "/") {
		st := a.client.Reconciler().Snapshot()
		return a.client.SendMessage(line, st.ConversationID, 0)
	}

	fields := strings.Fields(line)
	st := a.client.Reconciler().Snapshot()

	switch fields[0] {
	case "/help":
		fmt.Println(helpText)
		return nil

	case "/approve", "/reject":
		if !st.AwaitingApproval() {
			return fmt.Errorf("nothing is awaiting approval")
		}
		verdict := wire.DecisionApproved
		if fields[0] == "/reject" {
			verdict = wire.DecisionRejected
		}
		decisions := make([]wire.Decision, len(st.PendingApprovals))
		for i, p := range st.PendingApprovals {
			decisions[i] = wire.Decision{CallID: p.CallID, Decision: verdict}
		}
		return a.client.SendApprovals(st.ConversationID, decisions)

	case "/plan":
		if st.Plan == nil {
			return fmt.Errorf("no plan has been proposed")
		}
		if len(fields) < 2 {
			return fmt.Errorf("usage: /plan approve | /plan reject <feedback>")
		}
		switch fields[1] {
		case "approve":
			return a.client.ApprovePlan(st.ConversationID, st.Plan.ID)
		case "reject":
			feedback := strings.Join(fields[2:], " ")
			return a.client.RejectPlan(st.ConversationID, st.Plan.ID, feedback)
		default:
			return fmt.Errorf("usage: /plan approve | /plan reject <feedback>")
		}

	case "/save":
		if st.Design == nil {
			return fmt.Errorf("no design to save")
		}
		return a.client.SaveDesign(st.ConversationID, st.Design)

	case "/load":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /load <version>")
		}
		version, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("version must be a number")
		}
		return a.client.LoadVersion(st.ConversationID, version)

	case "/versions":
		for _, v := range st.Versions {
			fmt.Printf("  v%d  %s  %s\n", v.Version, v.SavedAt.Format("2006-01-02 15:04:05"), v.Name)
		}
		return nil

	case "/export":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /export <file.png|file.jpeg|file.svg> [WxH]")
		}
		return a.export(fields[1], fields[2:])

	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}

func (a *cli) export(path string, args []string) error {
	a.mu.Lock()
	scene := a.scene
	a.mu.Unlock()
	if scene == nil {
		return fmt.Errorf("no design to export")
	}

	opts := canvas.ExportOptions{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		opts.Format = canvas.FormatPNG
	case ".jpg", ".jpeg":
		opts.Format = canvas.FormatJPEG
	case ".svg":
		opts.Format = canvas.FormatSVG
	default:
		return fmt.Errorf("unsupported extension on %s", path)
	}
	if len(args) > 0 {
		w, h, ok := strings.Cut(args[0], "x")
		if !ok {
			return fmt.Errorf("size must look like 1080x1080")
		}
		opts.Width, _ = strconv.Atoi(w)
		opts.Height, _ = strconv.Atoi(h)
	}

	assets, err := canvas.NewAssets(a.log)
	if err != nil {
		return err
	}
	resolved := assets.Resolve(context.Background(), scene)

	out, err := canvas.Export(scene, resolved, opts, a.log)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return err
	}
	fmt.Printf("  * wrote %s (%d bytes)\n", path, len(out))
	return nil
}

const helpText = `commands:
  /approve               approve all pending tool calls
  /reject                reject all pending tool calls
  /plan approve          approve the proposed plan
  /plan reject <text>    reject the proposed plan with feedback
  /save                  save the current design as a new version
  /load <n>              restore a saved version
  /versions              list saved versions
  /export <file> [WxH]   export the canvas (png, jpeg, svg)
  /quit                  exit`
