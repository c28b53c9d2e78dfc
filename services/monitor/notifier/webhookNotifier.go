package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
)

var errEmptyURL = errors.New("empty webhook URL")

// ArgsWebhookNotifier is the DTO used to create a new webhook notifier
type ArgsWebhookNotifier struct {
	URL       string
	APIKey    string
	Source    string
	Timeout   time.Duration
	QueueSize int
}

// WebhookPayload is the JSON body posted for every forwarded event
type WebhookPayload struct {
	Source string       `json:"source"`
	Event  common.Event `json:"event"`
}

type webhookNotifier struct {
	url    string
	apiKey string
	source string
	client *http.Client

	mut    sync.Mutex
	closed bool
	queue  chan common.Event
	wg     sync.WaitGroup
}

// NewWebhookNotifier creates a notifier posting alert events to a webhook from a background worker
func NewWebhookNotifier(args ArgsWebhookNotifier) (*webhookNotifier, error) {
	if args.URL == "" {
		return nil, errEmptyURL
	}
	if args.QueueSize <= 0 {
		args.QueueSize = 1
	}

	wn := &webhookNotifier{
		url:    args.URL,
		apiKey: args.APIKey,
		source: args.Source,
		client: &http.Client{
			Timeout: args.Timeout,
		},
		queue: make(chan common.Event, args.QueueSize),
	}

	wn.wg.Add(1)
	go wn.processLoop()

	return wn, nil
}

// Handle queues alert transitions and any-alert changes. Other events are ignored. When the queue
// is full the event is dropped.
func (wn *webhookNotifier) Handle(event common.Event) {
	if event.Kind != common.EventAlertTransition && event.Kind != common.EventAnyAlertChanged {
		return
	}

	wn.mut.Lock()
	defer wn.mut.Unlock()

	if wn.closed {
		return
	}

	select {
	case wn.queue <- event:
	default:
		log.Warn("webhook queue full, dropping event", "kind", event.Kind)
	}
}

func (wn *webhookNotifier) processLoop() {
	defer wn.wg.Done()

	for event := range wn.queue {
		err := wn.send(context.Background(), event)
		if err != nil {
			log.Warn("failed to send webhook notification, it will be discarded", "kind", event.Kind, "error", err)
		}
	}
}

func (wn *webhookNotifier) send(ctx context.Context, event common.Event) error {
	body, err := json.Marshal(WebhookPayload{
		Source: wn.source,
		Event:  event,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if wn.apiKey != "" {
		req.Header.Set("X-Api-Key", wn.apiKey)
	}

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("network error sending webhook: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected notification with status code: %d", resp.StatusCode)
	}

	log.Debug("successfully sent webhook notification", "url", wn.url, "kind", event.Kind)

	return nil
}

// Close stops accepting events, sends the queued ones and waits for the worker
func (wn *webhookNotifier) Close() error {
	wn.mut.Lock()
	if wn.closed {
		wn.mut.Unlock()
		return nil
	}
	wn.closed = true
	close(wn.queue)
	wn.mut.Unlock()

	wn.wg.Wait()

	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (wn *webhookNotifier) IsInterfaceNil() bool {
	return wn == nil
}
