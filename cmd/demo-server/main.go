package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	ws "questphone/adapters/websocket"
	"questphone/core"
	"questphone/engine"
	"questphone/realtime"
	"questphone/wellbeing"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	ctx := context.Background()
	hub := realtime.NewHub()
	svc := wellbeing.New(
		wellbeing.WithRealtime(hub),
		wellbeing.WithDispatchMode(engine.DispatchAsync),
	)

	http.Handle("/ws", ws.Handler(hub))
	http.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		// routes: POST /users/{id}/block/{app}, GET /users/{id}/tap/{app},
		// POST /users/{id}/pass/{app}, POST /users/{id}/complete, GET /users/{id}
		parts := split(r.URL.Path, '/')
		if len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		user := core.UserID(parts[1])
		switch r.Method {
		case http.MethodPost:
			if len(parts) >= 4 && parts[2] == "block" {
				err := svc.SetDistraction(ctx, user, core.AppID(parts[3]), true)
				writeJSON(w, map[string]any{"ok": err == nil, "err": errString(err)})
				return
			}
			if len(parts) >= 4 && parts[2] == "pass" {
				// force today's grant before spending
				if _, err := svc.AvailablePasses(ctx, user, nil); err != nil {
					writeJSON(w, map[string]any{"err": errString(err)})
					return
				}
				deadline, err := svc.UseFreePass(ctx, user, core.AppID(parts[3]))
				writeJSON(w, map[string]any{"until": deadline.UnixMilli(), "err": errString(err)})
				return
			}
			if len(parts) >= 3 && parts[2] == "complete" {
				counted, err := svc.ContinueStreak(ctx, user)
				writeJSON(w, map[string]any{"counted": counted, "err": errString(err)})
				return
			}
		case http.MethodGet:
			if len(parts) >= 4 && parts[2] == "tap" {
				decision, err := svc.TapApp(ctx, user, core.AppID(parts[3]))
				writeJSON(w, map[string]any{"decision": decision.String(), "err": errString(err)})
				return
			}
			st, err := svc.GetState(ctx, user)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			writeJSON(w, st)
			return
		}
		http.NotFound(w, r)
	})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

func split(p string, sep rune) []string {
	var parts []string
	current := make([]rune, 0, len(p))

	for _, r := range p {
		if r == sep {
			if len(current) > 0 {
				parts = append(parts, string(current))
				current = current[:0]
			}
			continue
		}
		current = append(current, r)
	}

	if len(current) > 0 {
		parts = append(parts, string(current))
	}

	return parts
}
