// Package internal hosts the development-only badger inspector: a tiny HTML
// dashboard to eyeball the room documents and live hub stats without
// attaching a debugger.
package internal

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const inspectPage = `<!DOCTYPE html>
<html>
<head>
<title>chat-hub inspector</title>
<style>
body { font-family: monospace; margin: 2em; background: #111; color: #ddd; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 4px 12px; border-bottom: 1px solid #333; }
th { color: #6c6; }
.stats span { margin-right: 2em; color: #9cf; }
</style>
</head>
<body>
<h2>chat-hub inspector</h2>
<div class="stats">
{{range $k, $v := .Stats}}<span>{{$k}}: {{$v}}</span>{{end}}
</div>
<form method="get"><input name="prefix" value="{{.Prefix}}"><button>Scan</button></form>
<table>
<tr><th>Key</th><th>Kind</th><th>Entity</th><th>Updated</th><th>Detail</th></tr>
{{range .Items}}
<tr><td>{{.Key}}</td><td>{{.Kind}}</td><td>{{.EntityID}}</td><td>{{.Updated}}</td><td>{{.Detail}}</td></tr>
{{end}}
</table>
</body>
</html>`

type InspectRow struct {
	Key      string
	Kind     string
	EntityID string
	Updated  string
	Detail   string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer exposes the inspector on its own port, off the main
// router. Never enable it on an exposed interface.
func StartDebugServer(db *badger.DB, port int, mapper RowMapper, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.New("inspect").Parse(inspectPage))

	if mapper == nil {
		mapper = DefaultMapper
	}

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "room:"
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("localhost:%d", port), mux)
	}()
}

// RoomMapper renders a room document row. Index keys carry no value and
// fall back to the raw rendering.
func RoomMapper(key string, val []byte) InspectRow {
	var room struct {
		Kind         string   `json:"kind"`
		Name         string   `json:"name"`
		Participants []string `json:"participants"`
		Messages     []any    `json:"messages"`
		LastMessage  struct {
			Content string    `json:"content"`
			At      time.Time `json:"at"`
		} `json:"lastMessage"`
	}
	if err := json.Unmarshal(val, &room); err != nil {
		return DefaultMapper(key, val)
	}

	updated := "--:--:--"
	if !room.LastMessage.At.IsZero() {
		updated = room.LastMessage.At.Format("15:04:05")
	}
	return InspectRow{
		Key:      key,
		Kind:     room.Kind,
		EntityID: room.Name,
		Updated:  updated,
		Detail: fmt.Sprintf("%d participants, %d messages, last: %q",
			len(room.Participants), len(room.Messages), room.LastMessage.Content),
	}
}

func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:      key,
		Kind:     "RAW",
		EntityID: "--------",
		Updated:  "--:--:--",
		Detail:   "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
	if len(parts) >= 2 {
		row.Kind = parts[0]
		row.EntityID = parts[len(parts)-1]
		if len(row.EntityID) > 8 {
			row.EntityID = row.EntityID[:8]
		}
	}
	return row
}
