package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/testsCommon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_RequiredComponents(t *testing.T) {
	t.Parallel()

	t.Run("nil store", func(t *testing.T) {
		args := createArgs(t)
		args.Store = nil
		serv, err := NewServer(args)
		require.Nil(t, serv)
		require.ErrorContains(t, err, "store is required")
	})
	t.Run("nil threshold manager", func(t *testing.T) {
		args := createArgs(t)
		args.Thresholds = nil
		_, err := NewServer(args)
		require.ErrorContains(t, err, "threshold manager is required")
	})
	t.Run("nil poller settings", func(t *testing.T) {
		args := createArgs(t)
		args.Poller = nil
		_, err := NewServer(args)
		require.ErrorContains(t, err, "poller settings are required")
	})
	t.Run("nil event source", func(t *testing.T) {
		args := createArgs(t)
		args.Events = nil
		_, err := NewServer(args)
		require.ErrorContains(t, err, "event source is required")
	})
	t.Run("nil general handler", func(t *testing.T) {
		args := createArgs(t)
		args.GeneralHandler = nil
		_, err := NewServer(args)
		require.ErrorContains(t, err, "nil http handler")
	})
	t.Run("empty jwt secret uses a random one", func(t *testing.T) {
		args := createArgs(t)
		args.JWTSecret = ""
		serv, err := NewServer(args)
		require.NoError(t, err)
		require.False(t, serv.IsInterfaceNil())
		require.Len(t, serv.jwtSecret, jwtSecretLength)
		_ = getValidToken(t, serv)
		require.NoError(t, serv.Close())
	})
}

func TestServer_StartAndClose(t *testing.T) {
	args := createArgs(t)
	args.ListenAddress = "127.0.0.1:0"
	serv, err := NewServer(args)
	require.NoError(t, err)

	serv.Start()
	require.NotEqual(t, "127.0.0.1:0", serv.Address())

	resp, err := http.Post("http://"+serv.Address()+"/api/auth/login", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	require.NoError(t, serv.Close())
}

func TestHandlers_ArchiveDisabled(t *testing.T) {
	args := createArgs(t)
	serv, err := NewServer(args)
	require.NoError(t, err)
	defer func() {
		_ = serv.Close()
	}()
	token := getValidToken(t, serv)

	w := doRequest(serv, http.MethodGet, "/api/archive", token, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(serv, http.MethodGet, "/api/alerts", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"anyAlert":false,"states":{},"history":[]}`, w.Body.String())

	w = doRequest(serv, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_ArchiveErrors(t *testing.T) {
	args := createArgs(t)
	args.Archive = &testsCommon.ArchiveStub{
		QueryRangeHandler: func(ctx context.Context, from int64, to int64) ([]common.Snapshot, error) {
			return nil, errors.New("db range error")
		},
		AlertHistoryHandler: func(ctx context.Context, from int64, to int64) ([]common.AlertRecord, error) {
			return nil, errors.New("db alerts error")
		},
	}
	serv, err := NewServer(args)
	require.NoError(t, err)
	defer func() {
		_ = serv.Close()
	}()
	token := getValidToken(t, serv)

	w := doRequest(serv, http.MethodGet, "/api/archive", token, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "db range error")

	w = doRequest(serv, http.MethodGet, "/api/alerts", token, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "db alerts error")

	w = doRequest(serv, http.MethodGet, "/api/alerts?to=x", token, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func readEvent(t *testing.T, conn *websocket.Conn) common.Event {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	event := common.Event{}
	require.NoError(t, json.Unmarshal(data, &event))

	return event
}

func TestWebSocketStream(t *testing.T) {
	tc := setupTestServer(t)
	token := getValidToken(t, tc.server)
	require.NoError(t, tc.store.Add(testSnapshot(1000, 22)))

	srv := httptest.NewServer(tc.server.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()

	// the latest snapshot is sent on connect
	event := readEvent(t, conn)
	require.Equal(t, common.EventSnapshot, event.Kind)
	require.Equal(t, int64(1000), event.Snapshot.Timestamp)

	require.Eventually(t, func() bool {
		return tc.server.hub.numClients() == 1
	}, 2*time.Second, 10*time.Millisecond)

	tc.bus.Publish(common.Event{
		Kind:      common.EventStatus,
		Timestamp: 2000,
		Status:    &common.StatusMessage{Sensor: common.SensorBMP180, Level: common.StatusWarning, Text: "Error reading data - nack"},
	})
	event = readEvent(t, conn)
	assert.Equal(t, common.EventStatus, event.Kind)
	assert.Equal(t, "Error reading data - nack", event.Status.Text)

	require.NoError(t, tc.server.Close())
	assert.Equal(t, 0, tc.server.hub.numClients())

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}
