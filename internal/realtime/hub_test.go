package realtime

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traderesonance/server/internal/models"
)

func TestHubBroadcastsToClients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil, logrus.New())

	r := gin.New()
	r.GET("/live", hub.ServeWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	event := models.EntryEvent{Kind: models.EventCreated, Entry: &models.Entry{ID: 3, City: "Aurora", Product: "Iron Ore", Price: 120}}
	require.NoError(t, hub.Broadcast(event))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.EntryEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, models.EventCreated, got.Kind)
	require.NotNil(t, got.Entry)
	assert.Equal(t, "Aurora", got.Entry.City)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub([]string{"http://allowed.test"}, logrus.New())

	r := gin.New()
	r.GET("/live", hub.ServeWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live"
	header := map[string][]string{"Origin": {"http://evil.test"}}
	_, _, err := websocket.DefaultDialer.Dial(url, header)
	assert.Error(t, err)
	assert.Zero(t, hub.Len())
}
