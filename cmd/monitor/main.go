package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bryanktliu/djl-serving/internal/services"
)

// serviceStatus tracks the last heartbeat seen from one serving process.
type serviceStatus struct {
	services.Heartbeat
	FirstSeen time.Time
	LastSeen  time.Time
}

type monitor struct {
	mu       sync.Mutex
	services map[string]*serviceStatus
}

func (m *monitor) update(hb services.Heartbeat) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.services[hb.Service]
	if !ok {
		status = &serviceStatus{FirstSeen: now}
		m.services[hb.Service] = status
	}
	status.Heartbeat = hb
	status.LastSeen = now
}

func (m *monitor) print() {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.services))
	for name := range m.services {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("\n=== serving status %s ===\n", time.Now().Format(time.TimeOnly))
	for _, name := range names {
		s := m.services[name]
		staleness := time.Since(s.LastSeen).Truncate(time.Second)
		fmt.Printf("%-20s pending=%-4d active=%-4d models=%-3d uptime=%v last_seen=%v ago\n",
			name, s.Pending, s.Active, len(s.Models),
			time.Since(s.FirstSeen).Truncate(time.Second), staleness)
	}
}

func main() {
	var natsURL = flag.String("nats", nats.DefaultURL, "NATS server URL")
	var subject = flag.String("subject", "monitoring.serving.heartbeat", "Heartbeat subject to watch")
	flag.Parse()

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Close()

	m := &monitor{services: make(map[string]*serviceStatus)}

	_, err = nc.Subscribe(*subject, func(msg *nats.Msg) {
		var hb services.Heartbeat
		if err := json.Unmarshal(msg.Data, &hb); err != nil {
			log.Printf("Failed to parse heartbeat: %v", err)
			return
		}
		m.update(hb)
	})
	if err != nil {
		log.Fatalf("Failed to subscribe to %s: %v", *subject, err)
	}

	log.Printf("Watching heartbeats on %s", *subject)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			m.print()
		case <-sig:
			return
		}
	}
}
