package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultServer = "https://ntfy.sh"

var (
	mu          sync.RWMutex
	client      *http.Client
	server      string
	topic       string
	initialized bool
)

// Init initializes the notification client. An empty topic leaves
// notifications disabled.
func Init(ntfyTopic, ntfyServer string) {
	mu.Lock()
	defer mu.Unlock()

	if ntfyTopic == "" {
		initialized = false
		log.Warn().Msg("Ntfy topic not configured - notifications disabled")
		return
	}
	if ntfyServer == "" {
		ntfyServer = DefaultServer
	}

	client = &http.Client{
		Timeout: 10 * time.Second,
	}
	server = strings.TrimRight(ntfyServer, "/")
	topic = ntfyTopic
	initialized = true

	log.Info().
		Str("topic", topic).
		Str("server", server).
		Msg("Ntfy notifications initialized")
}

func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return initialized
}

// Send publishes a notification to the configured ntfy server.
func Send(title, message string) error {
	mu.RLock()
	ok, c, base, t := initialized, client, server, topic
	mu.RUnlock()

	if !ok {
		return fmt.Errorf("notifications not initialized")
	}

	payload := map[string]interface{}{
		"topic":   t,
		"title":   title,
		"message": message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	// ntfy accepts JSON publishes on the server root; the topic travels in the body.
	req, err := http.NewRequest(http.MethodPost, base, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}

	log.Debug().
		Str("title", title).
		Int("status", resp.StatusCode).
		Msg("Notification sent successfully")

	return nil
}
