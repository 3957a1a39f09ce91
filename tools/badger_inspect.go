package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// storedRoom mirrors the repository document shape, trimmed to the fields
// worth printing.
type storedRoom struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Participants []string `json:"participants"`
	Messages     []struct {
		SenderID string    `json:"senderId"`
		ReadBy   []any     `json:"readBy"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"messages"`
	LastMessage struct {
		Content string    `json:"content"`
		At      time.Time `json:"at"`
	} `json:"lastMessage"`
}

type storedUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func main() {
	dbPath := flag.String("db", "/tmp/chathub/badger", "Path to badger DB")
	// Default to "room:" to skip the member: and user:email: index keys
	prefix := flag.String("prefix", "room:", "Prefix to scan (room: or user:id:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	if strings.HasPrefix(*prefix, "user:") {
		table.SetHeader([]string{"Key", "Email", "Display Name"})
	} else {
		table.SetHeader([]string{"Key", "Kind", "Name", "Participants", "Messages", "Last Message", "At"})
	}
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Index keys hold no document, skip them explicitly
			if strings.HasPrefix(key, "member:") || strings.HasPrefix(key, "user:email:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				if strings.HasPrefix(key, "user:") {
					var u storedUser
					if err := json.Unmarshal(v, &u); err != nil {
						fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
						return nil
					}
					table.Append([]string{key, u.Email, u.DisplayName})
					return nil
				}

				var room storedRoom
				if err := json.Unmarshal(v, &room); err != nil {
					// Log the broken document and keep scanning
					fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
					return nil
				}

				participants := lo.Map(room.Participants, func(id string, _ int) string {
					if len(id) > 8 {
						return id[:8]
					}
					return id
				})

				lastAt := ""
				if !room.LastMessage.At.IsZero() {
					lastAt = room.LastMessage.At.Format("15:04:05")
				}

				table.Append([]string{
					key,
					room.Kind,
					room.Name,
					strings.Join(participants, " "),
					fmt.Sprintf("%d", len(room.Messages)),
					room.LastMessage.Content,
					lastAt,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	return badger.Open(opts)
}
