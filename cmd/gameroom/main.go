// Gameroom — CLI entry point.
//
// This tool hosts or joins a multiplayer session through a relay server,
// upgrading to direct P2P data channels per peer whenever negotiation
// succeeds. Moves are entered as chat lines; session events stream to the
// terminal.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-role, -name, -relay, -join, -players, -activity).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/config"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/session"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/signaling"
	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/util"
)

var version = "dev"

// chatMove is the demo's move payload: one line of text.
type chatMove struct {
	Text string `json:"text"`
}

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	role := flag.String("role", "", "Role: host or guest")
	name := flag.String("name", "", "Display name")
	relayFlag := flag.String("relay", "ws://127.0.0.1:8080", "Relay server URL")
	joinFlag := flag.String("join", "", "Session reference to join (guest only)")
	players := flag.Int("players", 4, "Max players (host only)")
	activity := flag.String("activity", "", "Pre-selected activity id (host only)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Gameroom — v%s", version))
	pterm.Println()

	relayURL, err := normalizeRelayURL(*relayFlag)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	cfg := config.Client{
		PlayerName: *name,
		RelayURL:   relayURL,
		SessionRef: *joinFlag,
		MaxPlayers: *players,
		ActivityID: *activity,
	}

	switch *role {
	case "":
		runInteractive(ctx, cfg)

	case "host":
		cfg.Role = config.RoleHost
		requireName(&cfg)
		runSession(ctx, cfg)

	case "guest":
		cfg.Role = config.RoleGuest
		requireName(&cfg)
		if cfg.SessionRef == "" {
			util.LogError("missing -join for guest role")
			os.Exit(1)
		}
		runSession(ctx, cfg)

	default:
		util.LogError("invalid -role: must be 'host' or 'guest'")
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runInteractive falls back to prompts when no -role flag is provided.
func runInteractive(ctx context.Context, cfg config.Client) {
	choice, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host  — Create a new session", "Guest — Join an existing session"}).
		WithDefaultText("Select your role").
		Show()
	pterm.Println()

	requireName(&cfg)

	if strings.HasPrefix(choice, "Host") {
		cfg.Role = config.RoleHost
	} else {
		cfg.Role = config.RoleGuest
		ref, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Session reference to join").
			Show()
		cfg.SessionRef = strings.TrimSpace(ref)
		pterm.Println()
	}

	runSession(ctx, cfg)
}

// runSession creates or joins the session, then hands over to the input loop.
func runSession(ctx context.Context, cfg config.Client) {
	ctl := session.New(func(ctx context.Context, sessionID, peerID string) (signaling.Channel, error) {
		return signaling.Dial(ctx, cfg.RelayURL, sessionID, peerID)
	})
	watchEvents(ctl)

	var err error
	if cfg.Role == config.RoleHost {
		_, err = ctl.CreateSession(ctx, cfg.PlayerName, cfg.MaxPlayers, cfg.ActivityID)
	} else {
		_, err = ctl.JoinSession(ctx, cfg.SessionRef, cfg.PlayerName)
	}
	if err != nil {
		util.LogError("failed to enter session: %v", err)
		os.Exit(1)
	}
	defer ctl.LeaveSession()

	if ref, err := ctl.ShareableSessionRef(); err == nil {
		util.LogSuccess("session ready — share this reference: %s", ref)
	}
	util.StartStatsReporter(ctx)

	inputLoop(ctx, ctl)
	util.LogInfo("left session")
}

// watchEvents prints session events as they arrive.
func watchEvents(ctl *session.Controller) {
	ctl.OnAny(func(ev session.Event) {
		switch ev.Kind {
		case session.EventMoveReceived:
			var mv chatMove
			if json.Unmarshal(ev.Payload, &mv) == nil && mv.Text != "" {
				pterm.Printf("[%s] %s\n", shortID(ev.PlayerID), mv.Text)
			}
		case session.EventConnectionError:
			util.LogWarning("connection problem with %s: %v", shortID(ev.PlayerID), ev.Err)
		case session.EventPlayerConnected, session.EventPlayerDisconnected,
			session.EventPlayerReadyChanged, session.EventActivitySelected,
			session.EventActivityStarted, session.EventStateUpdated:
			util.LogInfo("%s (player %s, %d in roster)",
				ev.Kind, shortID(ev.PlayerID), rosterSize(ev.Session))
		}
	})
}

// inputLoop reads stdin: plain lines become moves, /commands drive the
// session. Exits on EOF, /leave, or ctx cancellation.
func inputLoop(ctx context.Context, ctl *session.Controller) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	pterm.Println("Type to chat. Commands: /ready /unready /select <id> /start /finish /rematch /leave")

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if done := handleLine(ctl, strings.TrimSpace(line)); done {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func handleLine(ctl *session.Controller, line string) bool {
	if line == "" {
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	var err error
	switch cmd {
	case "/leave":
		return true
	case "/ready":
		err = ctl.SetPlayerReady(true)
	case "/unready":
		err = ctl.SetPlayerReady(false)
	case "/select":
		err = ctl.SelectActivity(strings.TrimSpace(arg))
	case "/start":
		err = ctl.StartActivity(strings.TrimSpace(arg))
	case "/finish":
		err = ctl.CompleteActivity()
	case "/rematch":
		err = ctl.Rematch()
	default:
		payload, _ := json.Marshal(chatMove{Text: line})
		err = ctl.SendMove(payload)
	}

	if err != nil {
		util.LogWarning("%v", err)
	}
	return false
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// normalizeRelayURL validates a relay URL and pins its path to /ws.
func normalizeRelayURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid relay URL: %s", raw)
	}
	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "wss" {
		scheme = u.Scheme
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host), nil
}

func requireName(cfg *config.Client) {
	for strings.TrimSpace(cfg.PlayerName) == "" {
		name, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Display name").
			Show()
		cfg.PlayerName = strings.TrimSpace(name)
		pterm.Println()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func rosterSize(s *session.Session) int {
	if s == nil {
		return 0
	}
	return len(s.Players)
}
