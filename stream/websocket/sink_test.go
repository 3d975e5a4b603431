package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/hupe1980/artifactmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestSink(t *testing.T) (*Sink, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConn := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverConn <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	reader := <-serverConn
	t.Cleanup(func() { reader.Close() })

	return NewSink(clientConn), reader
}

func TestSinkWritesWireEvents(t *testing.T) {
	sink, reader := dialTestSink(t)

	events := []core.StreamEvent{
		core.NewKindEvent("art-1", core.KindCode),
		core.NewIDEvent("art-1"),
		core.NewContentDeltaEvent("art-1", "package main"),
		core.NewFinishEvent("art-1"),
	}
	for _, ev := range events {
		require.NoError(t, sink.Write(ev))
	}

	for _, want := range events {
		var got core.StreamEvent
		require.NoError(t, reader.ReadJSON(&got))
		assert.Equal(t, want, got)
	}
}

func TestSinkClosed(t *testing.T) {
	sink, _ := dialTestSink(t)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close()) // idempotent

	err := sink.Write(core.NewTextDeltaEvent("late"))
	assert.ErrorIs(t, err, core.ErrSinkClosed)
}
