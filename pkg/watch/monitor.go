// Package watch follows RIS Live and flags announcements of a prefix whose
// origin AS is outside the expected set. It is the streaming counterpart of
// the one-shot origin check.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultURL = "wss://ris-live.ripe.net/v1/ws/?client=github.com/sudorandom/bgp-intel"

// OriginAlert is emitted when a peer announces the watched prefix from an
// unexpected origin AS.
type OriginAlert struct {
	Prefix string
	Origin int
	Peer   string
	Path   []int
	Seen   time.Time
}

// Stats is a running tally of what the monitor has observed.
type Stats struct {
	Announcements int
	Withdrawals   int
	TotalMessages int
	Peers         map[string]int
	Origins       map[int]int
	Alerts        int
	Started       time.Time
}

type Monitor struct {
	URL    string
	Prefix string

	// Expected origins; empty means report origins without alerting.
	Expected map[int]bool

	// OnAlert is called for each unexpected-origin announcement.
	OnAlert func(OriginAlert)

	mu    sync.Mutex
	stats Stats
}

func NewMonitor(prefix string, expected []int) *Monitor {
	exp := make(map[int]bool, len(expected))
	for _, asn := range expected {
		exp[asn] = true
	}
	return &Monitor{
		URL:      DefaultURL,
		Prefix:   prefix,
		Expected: exp,
		stats: Stats{
			Peers:   make(map[string]int),
			Origins: make(map[int]int),
			Started: time.Now(),
		},
	}
}

// risMessage is the subset of the RIS Live schema the monitor needs. Path
// elements are usually numbers but can be AS-set arrays.
type risMessage struct {
	Type string `json:"type"`
	Data struct {
		Announcements []struct {
			Prefixes []string `json:"prefixes"`
		} `json:"announcements"`
		Withdrawals []string          `json:"withdrawals"`
		Peer        string            `json:"peer"`
		Path        []json.RawMessage `json:"path"`
	} `json:"data"`
}

// Record processes one raw RIS Live frame.
func (m *Monitor) Record(raw []byte) {
	var msg risMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Type == "ris_error" {
		log.Printf("[RIS ERROR] %s", string(raw))
		return
	}
	if msg.Type != "ris_message" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalMessages++
	if peer := msg.Data.Peer; peer != "" {
		m.stats.Peers[peer]++
	}
	m.stats.Withdrawals += len(msg.Data.Withdrawals)

	if len(msg.Data.Announcements) == 0 {
		return
	}
	for _, ann := range msg.Data.Announcements {
		m.stats.Announcements += len(ann.Prefixes)
	}

	path := decodePath(msg.Data.Path)
	if len(path) == 0 {
		return
	}
	origin := path[len(path)-1]
	m.stats.Origins[origin]++

	if len(m.Expected) > 0 && !m.Expected[origin] {
		m.stats.Alerts++
		if m.OnAlert != nil {
			m.OnAlert(OriginAlert{
				Prefix: m.Prefix,
				Origin: origin,
				Peer:   msg.Data.Peer,
				Path:   path,
				Seen:   time.Now(),
			})
		}
	}
}

// decodePath flattens a RIS path into plain AS numbers. AS-set members are
// appended in order; the true origin stays the last element.
func decodePath(raw []json.RawMessage) []int {
	path := make([]int, 0, len(raw))
	for _, elem := range raw {
		var asn int
		if err := json.Unmarshal(elem, &asn); err == nil {
			path = append(path, asn)
			continue
		}
		var set []int
		if err := json.Unmarshal(elem, &set); err == nil {
			path = append(path, set...)
		}
	}
	return path
}

// Snapshot returns a copy of the current stats.
func (m *Monitor) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.stats
	out.Peers = make(map[string]int, len(m.stats.Peers))
	for k, v := range m.stats.Peers {
		out.Peers[k] = v
	}
	out.Origins = make(map[int]int, len(m.stats.Origins))
	for k, v := range m.stats.Origins {
		out.Origins[k] = v
	}
	return out
}

// Run connects to RIS Live and processes frames until ctx is cancelled,
// reconnecting with capped exponential backoff.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	m.stats = Stats{
		Peers:   make(map[string]int),
		Origins: make(map[int]int),
		Started: time.Now(),
	}
	m.mu.Unlock()

	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Printf("[RIS] Connecting to %s", m.URL)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.URL, nil)
		if err != nil {
			log.Printf("[RIS] Dial error: %v. Retrying in %v...", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = growBackoff(backoff)
			continue
		}

		if err := m.subscribe(conn); err != nil {
			log.Printf("[RIS] Subscribe error: %v. Retrying in %v...", err, backoff)
			_ = conn.Close()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = growBackoff(backoff)
			continue
		}
		backoff = time.Second
		log.Printf("[RIS] Watching %s", m.Prefix)

		// Unblock ReadMessage when the context ends.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = conn.Close()
			case <-done:
			}
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				close(done)
				_ = conn.Close()
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[RIS] Read error: %v. Reconnecting...", err)
				break
			}
			m.Record(message)
		}
	}
}

// growBackoff doubles a reconnect delay, capped at one minute.
func growBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > 60*time.Second {
		d = 60 * time.Second
	}
	return d
}

func (m *Monitor) subscribe(conn *websocket.Conn) error {
	sub := map[string]any{
		"type": "ris_subscribe",
		"data": map[string]any{
			"prefix":       m.Prefix,
			"moreSpecific": true,
			"lessSpecific": true,
		},
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("subscribing to %s: %w", m.Prefix, err)
	}
	return nil
}
