package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	apiconnect "github.com/osa030/flowbeat/internal/api/connect"
	"github.com/osa030/flowbeat/internal/app/player"
	"github.com/osa030/flowbeat/internal/app/transport"
	"github.com/osa030/flowbeat/internal/domain/track"
)

// formatDuration renders d as m:ss, or h:mm:ss past an hour.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatTrack(t track.Track) string {
	title := t.Title
	if title == "" {
		title = t.ID
	}
	if len(t.Artists) == 0 {
		return title
	}
	return fmt.Sprintf("%s - %s", strings.Join(t.Artists, ", "), title)
}

func formatState(s transport.Status) string {
	switch {
	case s.Buffering:
		return "⏳ Buffering"
	case s.Loading:
		return "⏳ Loading"
	case s.Playing:
		return "▶️  Playing"
	}
	switch s.State {
	case transport.StatePaused, transport.StateReady:
		return "⏸  Paused"
	case transport.StateEnded:
		return "⏹  Ended"
	case transport.StateError:
		return "⚠️  Error"
	default:
		return "⏹  Stopped"
	}
}

func printStatus(w io.Writer, s player.Snapshot) {
	fmt.Fprintln(w, "\n=== PLAYER STATUS ===")
	fmt.Fprintf(w, "State: %s\n", formatState(s.Transport))
	fmt.Fprintf(w, "Mode: %s\n", s.Mode)
	fmt.Fprintf(w, "Volume: %s%%\n", humanize.Ftoa(s.Transport.Volume*100))

	if s.Current != nil {
		fmt.Fprintf(w, "\nCurrent (%s of %d):\n", humanize.Ordinal(s.CurrentIndex+1), len(s.Queue))
		fmt.Fprintf(w, "  %s\n", formatTrack(*s.Current))
		fmt.Fprintf(w, "  Position: %s / %s (buffered %s%%)\n",
			formatDuration(s.Transport.Position),
			formatDuration(s.Transport.Duration),
			humanize.FtoaWithDigits(s.Transport.Buffered, 1))
	} else {
		fmt.Fprintln(w, "\nNo current track")
	}

	if len(s.Queue) > 0 {
		fmt.Fprintf(w, "\nQueue (%s tracks, %s):\n", humanize.Comma(int64(len(s.Queue))), formatDuration(s.QueueDuration))
		for i, t := range s.Queue {
			marker := "  "
			if i == s.CurrentIndex {
				marker = "> "
			}
			fmt.Fprintf(w, "%s%3d. %s [%s]\n", marker, i, formatTrack(t), formatDuration(t.Duration))
		}
	}
	fmt.Fprintln(w)
}

func printCatalogs(w io.Writer, resp *apiconnect.CatalogsResponse) {
	fmt.Fprintln(w, "Catalogs:")
	for _, c := range resp.Catalogs {
		fmt.Fprintf(w, "  %-20s %-10s %s\n", c.Name, c.Type, c.DisplayName)
	}
}

func printRejections(w io.Writer, rejected []apiconnect.Rejection) {
	if len(rejected) == 0 {
		return
	}
	fmt.Fprintf(w, "Rejected %s tracks:\n", humanize.Comma(int64(len(rejected))))
	for _, r := range rejected {
		fmt.Fprintf(w, "  %s: %s\n", r.TrackID, r.Code)
	}
}

func printEvent(w io.Writer, ev *apiconnect.Event) error {
	fmt.Fprintf(w, "[#%s %s] ", humanize.Comma(int64(ev.SequenceNo)), humanize.Time(ev.Time))

	switch ev.Kind {
	case "status":
		snap, err := decodeSnapshot(ev.Payload)
		if err != nil {
			return err
		}
		current := "-"
		if snap.Current != nil {
			current = formatTrack(*snap.Current)
		}
		fmt.Fprintf(w, "%s %s (%s)\n", formatState(snap.Transport), current, snap.Mode)
	case "time_update":
		var status transport.Status
		if err := json.Unmarshal(ev.Payload, &status); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s / %s\n", formatDuration(status.Position), formatDuration(status.Duration))
	case "error":
		var payload player.ErrorPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return err
		}
		fmt.Fprintf(w, "error on %s: %s\n", payload.TrackID, payload.Message)
	default:
		fmt.Fprintf(w, "%s\n", ev.Kind)
	}
	return nil
}
