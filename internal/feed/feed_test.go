package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/place-better/internal/config"
	"github.com/yourusername/place-better/internal/decoder/decodertest"
	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/repository"
)

const testRaceKey = "2024052605021011"

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func collect(t *testing.T, store repository.TelegramStore) []*models.RawTelegram {
	t.Helper()
	var out []*models.RawTelegram
	require.NoError(t, store.Stream(context.Background(), repository.TelegramFilter{}, func(tg *models.RawTelegram) error {
		out = append(out, tg)
		return nil
	}))
	return out
}

func TestParseFrame(t *testing.T) {
	payload := decodertest.Race(testRaceKey, "A", 1600)
	data, err := json.Marshal(Frame{DataSpec: "RACE", Payload: payload})
	require.NoError(t, err)

	f, err := ParseFrame(data)
	require.NoError(t, err)
	assert.Equal(t, payload, f.Payload)

	tg := f.Telegram("DEFAULT")
	assert.Equal(t, models.KindRace, tg.Kind)
	assert.Equal(t, "RACE", tg.DataSpec)
	assert.False(t, tg.ReceivedAt.IsZero())

	_, err = ParseFrame([]byte(`{"kind":"SE"}`))
	assert.Error(t, err)
	_, err = ParseFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestFileIngesterLines(t *testing.T) {
	store := repository.NewMemoryTelegramStore()
	ingester := NewFileIngester(store, "RACE", quietLogger())

	input := string(decodertest.Race(testRaceKey, "A", 1600)) + "\r\n\n" +
		string(decodertest.Passing(testRaceKey, "1*2,1")) + "\n" +
		"X\n"
	res, err := ingester.Ingest(context.Background(), strings.NewReader(input), FormatLines, "test")
	require.NoError(t, err)
	assert.Equal(t, IngestResult{Appended: 2, Skipped: 1}, res)

	telegrams := collect(t, store)
	require.Len(t, telegrams, 2)
	assert.Equal(t, models.KindRace, telegrams[0].Kind)
	assert.Len(t, telegrams[0].Payload, 710)
	assert.Equal(t, models.KindRacePass, telegrams[1].Kind)
	assert.Equal(t, "RACE", telegrams[1].DataSpec)
}

func TestFileIngesterJSONL(t *testing.T) {
	store := repository.NewMemoryTelegramStore()
	ingester := NewFileIngester(store, "RACE", quietLogger())
	ingester.batchSize = 1

	line, err := json.Marshal(Frame{Kind: models.KindEntry, Payload: []byte("SE-payload")})
	require.NoError(t, err)
	input := string(line) + "\n{broken\n" + string(line) + "\n"

	res, err := ingester.Ingest(context.Background(), strings.NewReader(input), FormatJSONL, "test")
	require.NoError(t, err)
	assert.Equal(t, IngestResult{Appended: 2, Skipped: 1}, res)
	assert.Len(t, collect(t, store), 2)

	_, err = ingester.Ingest(context.Background(), strings.NewReader(input), "xml", "test")
	assert.Error(t, err)
}

func feedServer(t *testing.T, messages func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		messages(conn)
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestReceiverAppendsFrames(t *testing.T) {
	race := decodertest.Race(testRaceKey, "A", 1600)
	entry := decodertest.Entry(testRaceKey, 1, decodertest.EntryOptions{HorseID: "2019100001"})
	srv := feedServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.BinaryMessage, race)
		frame, _ := json.Marshal(Frame{Kind: models.KindEntry, DataSpec: "LIVE", Payload: entry})
		_ = conn.WriteMessage(websocket.TextMessage, frame)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
	})

	store := repository.NewMemoryTelegramStore()
	r := NewReceiver(&config.FeedConfig{URL: wsURL(srv), DataSpec: "RACE"}, store, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.Received() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, r.IsConnected())
	assert.False(t, r.LastMessageTime().IsZero())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not stop")
	}
	assert.False(t, r.IsConnected())

	telegrams := collect(t, store)
	require.Len(t, telegrams, 2)
	assert.Equal(t, models.KindRace, telegrams[0].Kind)
	assert.Equal(t, "RACE", telegrams[0].DataSpec)
	assert.Equal(t, models.KindEntry, telegrams[1].Kind)
	assert.Equal(t, "LIVE", telegrams[1].DataSpec)
}

func TestReceiverReconnects(t *testing.T) {
	payload := decodertest.Race(testRaceKey, "A", 1600)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, payload)
		conn.Close()
	}))
	defer srv.Close()

	store := repository.NewMemoryTelegramStore()
	r := NewReceiver(&config.FeedConfig{URL: wsURL(srv)}, store, quietLogger()).
		WithReconnect(ReconnectConfig{InitialBackoff: 10 * time.Millisecond, MaxBackoff: 20 * time.Millisecond, BackoffMultiplier: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.Received() >= 3 }, 5*time.Second, 10*time.Millisecond)
}

func TestReconnectBackoff(t *testing.T) {
	rc := ReconnectConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, BackoffMultiplier: 2}
	assert.Equal(t, 2*time.Second, rc.next(time.Second))
	assert.Equal(t, 3*time.Second, rc.next(2*time.Second))
}
