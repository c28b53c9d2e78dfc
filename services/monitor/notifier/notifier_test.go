package notifier

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transitionEvent(to common.AlertState) common.Event {
	return common.Event{
		Kind:      common.EventAlertTransition,
		Timestamp: 1000,
		Transition: &common.AlertTransition{
			Timestamp: 1000,
			Key:       common.MetricKey{Sensor: common.SensorHTU21D, Metric: common.MetricTemperature},
			From:      common.AlertNormal,
			To:        to,
			Value:     common.Float(25.5),
		},
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	b := NewBus()
	assert.False(t, b.IsInterfaceNil())

	order := make([]string, 0)
	unsubscribeFirst := b.Subscribe(func(event common.Event) {
		order = append(order, "first:"+string(event.Kind))
	})
	b.Subscribe(func(event common.Event) {
		order = append(order, "second:"+string(event.Kind))
	})
	assert.Equal(t, 2, b.NumSubscribers())

	b.Publish(common.Event{Kind: common.EventStatus})
	unsubscribeFirst()
	unsubscribeFirst()
	b.Publish(common.Event{Kind: common.EventSnapshot})

	assert.Equal(t, []string{"first:status", "second:status", "second:snapshot"}, order)
	assert.Equal(t, 1, b.NumSubscribers())
}

func TestBus_HandlerMaySubscribe(t *testing.T) {
	t.Parallel()

	b := NewBus()
	calls := 0
	b.Subscribe(func(event common.Event) {
		b.Subscribe(func(event common.Event) {
			calls++
		})
	})

	b.Publish(common.Event{Kind: common.EventStatus})
	assert.Equal(t, 0, calls)
	b.Publish(common.Event{Kind: common.EventStatus})
	assert.Equal(t, 1, calls)
}

func TestLogNotifier_Handle(t *testing.T) {
	t.Parallel()

	ln := NewLogNotifier()
	assert.False(t, ln.IsInterfaceNil())

	anyAlert := true
	events := []common.Event{
		{Kind: common.EventStatus},
		{Kind: common.EventStatus, Status: &common.StatusMessage{Sensor: "HTU21D", Level: common.StatusInfo, Text: "OK"}},
		{Kind: common.EventStatus, Status: &common.StatusMessage{Sensor: "HTU21D", Level: common.StatusWarning, Text: "Mock sensor not providing data"}},
		{Kind: common.EventStatus, Status: &common.StatusMessage{Sensor: "HTU21D", Level: common.StatusError, Text: "Error reading data - nack"}},
		transitionEvent(common.AlertCritical),
		transitionEvent(common.AlertNormal),
		{Kind: common.EventAlertTransition},
		{Kind: common.EventAnyAlertChanged, AnyAlert: &anyAlert},
		{Kind: common.EventAnyAlertChanged},
		{Kind: common.EventThresholdsChanged, Thresholds: common.ThresholdTable{}},
		{Kind: common.EventSnapshot},
	}

	for _, event := range events {
		assert.NotPanics(t, func() {
			ln.Handle(event)
		})
	}
	assert.Equal(t, "n/a", formatValue(nil))
	assert.Equal(t, "25.5", formatValue(common.Float(25.5)))
}

func TestNewWebhookNotifier(t *testing.T) {
	t.Parallel()

	wn, err := NewWebhookNotifier(ArgsWebhookNotifier{})
	assert.Nil(t, wn)
	assert.Equal(t, errEmptyURL, err)
}

func TestWebhookNotifier_Handle(t *testing.T) {
	t.Parallel()

	var mut sync.Mutex
	received := make([]WebhookPayload, 0)
	receivedKeys := make([]string, 0)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		payload := WebhookPayload{}
		require.NoError(t, json.Unmarshal(body, &payload))

		mut.Lock()
		received = append(received, payload)
		receivedKeys = append(receivedKeys, r.Header.Get("X-Api-Key"))
		mut.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wn, err := NewWebhookNotifier(ArgsWebhookNotifier{
		URL:       server.URL,
		APIKey:    "secret123",
		Source:    "anavi-test",
		Timeout:   2 * time.Second,
		QueueSize: 10,
	})
	require.NoError(t, err)

	anyAlert := true
	wn.Handle(common.Event{Kind: common.EventStatus, Status: &common.StatusMessage{Text: "OK"}})
	wn.Handle(transitionEvent(common.AlertCritical))
	wn.Handle(common.Event{Kind: common.EventAnyAlertChanged, AnyAlert: &anyAlert})
	require.NoError(t, wn.Close())
	require.NoError(t, wn.Close())

	// events after close are ignored
	wn.Handle(transitionEvent(common.AlertNormal))

	mut.Lock()
	defer mut.Unlock()

	require.Len(t, received, 2)
	assert.Equal(t, []string{"secret123", "secret123"}, receivedKeys)
	assert.Equal(t, "anavi-test", received[0].Source)
	assert.Equal(t, common.EventAlertTransition, received[0].Event.Kind)
	assert.Equal(t, common.AlertCritical, received[0].Event.Transition.To)
	assert.Equal(t, "HTU21D.temperature", received[0].Event.Transition.Key.String())
	assert.Equal(t, common.EventAnyAlertChanged, received[1].Event.Kind)
	assert.True(t, *received[1].Event.AnyAlert)
}

func TestWebhookNotifier_FailuresAreNotRetried(t *testing.T) {
	t.Parallel()

	var mut sync.Mutex
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mut.Lock()
		calls++
		mut.Unlock()

		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	wn, err := NewWebhookNotifier(ArgsWebhookNotifier{URL: server.URL, Timeout: time.Second, QueueSize: 4})
	require.NoError(t, err)

	wn.Handle(transitionEvent(common.AlertWarning))
	require.NoError(t, wn.Close())

	mut.Lock()
	defer mut.Unlock()
	assert.Equal(t, 1, calls)
}

func TestWebhookNotifier_FullQueueDropsEvents(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var mut sync.Mutex
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		mut.Lock()
		calls++
		mut.Unlock()
	}))
	defer server.Close()

	wn, err := NewWebhookNotifier(ArgsWebhookNotifier{URL: server.URL, Timeout: 5 * time.Second, QueueSize: 1})
	require.NoError(t, err)

	// the first event is picked up by the worker, the second fills the queue
	wn.Handle(transitionEvent(common.AlertCritical))
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 5; i++ {
		wn.Handle(transitionEvent(common.AlertCritical))
	}

	close(release)
	require.NoError(t, wn.Close())

	mut.Lock()
	defer mut.Unlock()
	assert.Equal(t, 2, calls)
}
