// Package main provides the control CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/flowbeat/internal/api/connect"
	"github.com/osa030/flowbeat/internal/app/player"
	"github.com/osa030/flowbeat/internal/app/queue"
	"github.com/osa030/flowbeat/internal/domain/track"
)

var (
	app    = kingpin.New("flowbeat-ctl", "FlowBeat playback control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").Envar("FLOWBEAT_SERVER").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	statusCmd   = app.Command("status", "Show player status").Default()
	catalogsCmd = app.Command("catalogs", "List configured catalogs")

	loadCmd      = app.Command("load", "Replace the queue with tracks from a catalog")
	loadCatalog  = loadCmd.Flag("catalog", "Catalog name (default: first catalog with tracks)").String()
	loadRef      = loadCmd.Flag("ref", "Catalog reference, e.g. a playlist URL").String()
	loadLimit    = loadCmd.Flag("limit", "Maximum tracks to load").Int()
	loadStart    = loadCmd.Flag("start", "Queue index to start at").Int()
	loadAutoplay = loadCmd.Flag("autoplay", "Start playing immediately").Default("true").Bool()

	playCmd   = app.Command("play", "Resume or start playback")
	pauseCmd  = app.Command("pause", "Pause playback")
	toggleCmd = app.Command("toggle", "Toggle play/pause")
	nextCmd   = app.Command("next", "Skip to the next track")
	prevCmd   = app.Command("prev", "Go back to the previous track").Alias("previous")
	likeCmd   = app.Command("like", "Like the current track")
	clearCmd  = app.Command("clear", "Clear the queue and stop playback")

	jumpCmd   = app.Command("jump", "Jump to a queue position")
	jumpIndex = jumpCmd.Arg("index", "Queue index (0-based)").Required().Int()

	appendCmd    = app.Command("append", "Append a track to the queue")
	appendID     = appendCmd.Arg("id", "Track ID").Required().String()
	appendURL    = appendCmd.Arg("url", "Media URL").Required().String()
	appendTitle  = appendCmd.Flag("title", "Track title").String()
	appendArtist = appendCmd.Flag("artist", "Track artist").Strings()
	appendPlay   = appendCmd.Flag("play", "Select and play the track instead of appending").Bool()

	removeCmd = app.Command("remove", "Remove a track from the queue")
	removeID  = removeCmd.Arg("id", "Track ID").Required().String()

	modeCmd  = app.Command("mode", "Set the play mode, or cycle it when omitted")
	modeName = modeCmd.Arg("mode", "sequential, repeat_one or shuffle").Enum("sequential", "repeat_one", "shuffle")

	volumeCmd   = app.Command("volume", "Set the volume")
	volumeLevel = volumeCmd.Arg("level", "Volume between 0.0 and 1.0").Required().Float64()

	seekCmd     = app.Command("seek", "Seek within the current track")
	seekSeconds = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()

	watchCmd = app.Command("watch", "Stream player notifications")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, client, command); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, client *apiconnect.Client, command string) error {
	switch command {
	case statusCmd.FullCommand():
		return printResult(client.GetStatus(ctx))

	case catalogsCmd.FullCommand():
		resp, err := client.ListCatalogs(ctx)
		if err != nil {
			return err
		}
		printCatalogs(os.Stdout, resp)
		return nil

	case loadCmd.FullCommand():
		resp, err := client.LoadCatalog(ctx, &apiconnect.LoadCatalogRequest{
			Catalog:  *loadCatalog,
			Ref:      *loadRef,
			Limit:    *loadLimit,
			Start:    *loadStart,
			Autoplay: *loadAutoplay,
		})
		if err != nil {
			return err
		}
		printRejections(os.Stdout, resp.Rejected)
		printStatus(os.Stdout, resp.Status)
		return nil

	case playCmd.FullCommand():
		return printResult(client.Do(ctx, apiconnect.ProcedurePlay))
	case pauseCmd.FullCommand():
		return printResult(client.Do(ctx, apiconnect.ProcedurePause))
	case toggleCmd.FullCommand():
		return printResult(client.Do(ctx, apiconnect.ProcedureTogglePlay))
	case nextCmd.FullCommand():
		return printResult(client.Do(ctx, apiconnect.ProcedureNext))
	case prevCmd.FullCommand():
		return printResult(client.Do(ctx, apiconnect.ProcedurePrevious))
	case likeCmd.FullCommand():
		return printResult(client.Do(ctx, apiconnect.ProcedureLike))
	case clearCmd.FullCommand():
		return printResult(client.Do(ctx, apiconnect.ProcedureClear))

	case jumpCmd.FullCommand():
		return printResult(client.JumpTo(ctx, *jumpIndex))

	case appendCmd.FullCommand():
		t := track.Track{
			ID:       *appendID,
			Title:    *appendTitle,
			Artists:  *appendArtist,
			MediaURL: *appendURL,
			Source:   track.SourceDirect,
		}
		if *appendPlay {
			return printResult(client.SelectAndPlay(ctx, t))
		}
		resp, err := client.Append(ctx, t)
		if err != nil {
			return err
		}
		if !resp.Added {
			fmt.Println("Track already queued")
		}
		printStatus(os.Stdout, resp.Status)
		return nil

	case removeCmd.FullCommand():
		return printResult(client.Remove(ctx, *removeID))

	case modeCmd.FullCommand():
		if *modeName == "" {
			return printResult(client.Do(ctx, apiconnect.ProcedureToggleMode))
		}
		mode, _ := queue.ParsePlayMode(*modeName)
		return printResult(client.SetMode(ctx, mode))

	case volumeCmd.FullCommand():
		return printResult(client.SetVolume(ctx, *volumeLevel))

	case seekCmd.FullCommand():
		return printResult(client.Seek(ctx, *seekSeconds))

	case watchCmd.FullCommand():
		fmt.Println("Watching notifications. Press Ctrl+C to exit.")
		return client.Subscribe(ctx, func(ev *apiconnect.Event) error {
			return printEvent(os.Stdout, ev)
		})
	}
	return nil
}

func printResult(resp *apiconnect.StatusResponse, err error) error {
	if err != nil {
		return err
	}
	printStatus(os.Stdout, resp.Status)
	return nil
}

func decodeSnapshot(payload json.RawMessage) (player.Snapshot, error) {
	var snap player.Snapshot
	err := json.Unmarshal(payload, &snap)
	return snap, err
}
