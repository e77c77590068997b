package services

import (
	"sync"
	"time"

	"github.com/huangang/panelsentry/internal/models"
)

const (
	EventResponseCreated = "response.created"
	EventQuotaReached    = "quota.reached"
	EventFraudAlert      = "fraud.alert"
	EventDemoTraffic     = "demo.traffic"
)

// PanelEvent is a real-time update pushed to dashboard clients
type PanelEvent struct {
	Type      string      `json:"type"`
	ProjectID string      `json:"project_id,omitempty"`
	VendorID  string      `json:"vendor_id,omitempty"`
	Severity  string      `json:"severity,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	At        time.Time   `json:"at"`
}

// SSEHub manages SSE client connections and event broadcasting
type SSEHub struct {
	clients map[string]chan PanelEvent
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]chan PanelEvent),
	}
}

// Subscribe registers a new client and returns a channel for receiving events
func (h *SSEHub) Subscribe(clientID string) <-chan PanelEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan PanelEvent, 100)
	h.clients[clientID] = ch
	return ch
}

// Unsubscribe removes a client from the hub
func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts an event to all connected clients. Slow clients miss
// events rather than block the publisher.
func (h *SSEHub) Publish(event PanelEvent) {
	if event.At.IsZero() {
		event.At = nowFunc()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnResponse is registered as a ResponseObserver.
func (h *SSEHub) OnResponse(resp *models.Response, tally *ResponseTally) {
	event := PanelEvent{
		Type:      EventResponseCreated,
		ProjectID: resp.ProjectID,
		VendorID:  resp.VendorID,
		Data:      resp,
	}
	if tally != nil && tally.Diverted {
		event.Message = "complete recorded as quota-full, vendor paused"
	}
	h.Publish(event)
}

// Global SSE Hub instance
var globalSSEHub *SSEHub
var sseHubOnce sync.Once

// GetSSEHub returns the global SSE hub singleton
func GetSSEHub() *SSEHub {
	sseHubOnce.Do(func() {
		globalSSEHub = NewSSEHub()
	})
	return globalSSEHub
}
