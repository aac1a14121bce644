// Copyright 2026 The Loomhaven Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Loom is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Loom. If not, see <http://www.gnu.org/licenses/>.

// Package admin is the optional loopback-only HTTP+JSON introspection
// surface: read-only views of the pending queues and the driver
// version, plus an out-of-band checkpoint trigger. Additive to the
// in-language sysctl builtin, never a replacement for it.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Host is the slice of driver state the admin surface may see; the
// engine's sysctl host satisfies it directly.
type Host interface {
	Save() bool
	PendingCommands() int64
	PendingAlarms() int64
	Version() string
}

// Router builds the admin HTTP handler.
func Router(h Host) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"version": h.Version()})
	})
	r.Get("/queues", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]int64{
			"commands": h.PendingCommands(),
			"alarms":   h.PendingAlarms(),
		})
	})
	r.Post("/checkpoint", func(w http.ResponseWriter, _ *http.Request) {
		if !h.Save() {
			http.Error(w, "checkpoint failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]bool{"saved": true})
	})
	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
