package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/common"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
	"github.com/ternarybob/skillmatch/internal/services/events"
)

type bridgeFixture struct {
	ws      *WebSocketHandler
	resumes *fakeResumeStorage
	jobs    *fakeJobStorage
	matches *fakeMatchStorage
	events  interfaces.EventService
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	t.Helper()
	logger := arbor.NewLogger()
	f := &bridgeFixture{
		ws:      NewWebSocketHandler(common.WebSocketConfig{}, logger),
		resumes: newFakeResumeStorage(),
		jobs:    newFakeJobStorage(),
		matches: newFakeMatchStorage(),
		events:  events.NewService(logger),
	}
	t.Cleanup(func() { f.events.Close() })

	bridge := NewRealtimeBridge(f.ws, f.resumes, f.jobs, f.matches, logger)
	require.NoError(t, bridge.Start(f.events))
	// Second start is a no-op thanks to tagged subscriptions
	require.NoError(t, bridge.Start(f.events))
	return f
}

func TestBridgeRelaysResumeStatus(t *testing.T) {
	f := newBridgeFixture(t)
	f.resumes.rows["res_1"] = &models.Resume{
		ID: "res_1", UserID: "usr_1", Status: models.DocumentStatusReady,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	srv := wsTestServer(t, f.ws, "auth0|tester")
	conn := dialWS(t, srv)
	waitForRoom(t, f.ws, "auth0|tester", 1)

	require.NoError(t, f.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventResumeStatusChanged,
		Payload: models.StatusChange{ID: "res_1", Status: "ready", Ts: time.Now()},
	}))

	msg := readWSMessage(t, conn)
	assert.Equal(t, "resume:update", msg.Type)
	payload := msg.Payload.(map[string]interface{})
	assert.Equal(t, "res_1", payload["id"])
	// The bridge pushes the re-read row state, not the event payload
	assert.Equal(t, "ready", payload["status"])
}

func TestBridgeRelaysJobStatusWithTitle(t *testing.T) {
	f := newBridgeFixture(t)
	f.jobs.rows["job_1"] = &models.Job{
		ID: "job_1", UserID: "usr_1", Title: "Backend Engineer",
		Status: models.DocumentStatusProcessing,
	}

	srv := wsTestServer(t, f.ws, "auth0|tester")
	conn := dialWS(t, srv)
	waitForRoom(t, f.ws, "auth0|tester", 1)

	require.NoError(t, f.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventJobStatusChanged,
		Payload: models.StatusChange{ID: "job_1", Status: "processing", Ts: time.Now()},
	}))

	msg := readWSMessage(t, conn)
	assert.Equal(t, "job:update", msg.Type)
	payload := msg.Payload.(map[string]interface{})
	assert.Equal(t, "Backend Engineer", payload["title"])
	assert.Equal(t, "processing", payload["status"])
}

func TestBridgeRelaysMatchStatus(t *testing.T) {
	f := newBridgeFixture(t)
	f.matches.rows["mat_1"] = &models.MatchJob{
		ID: "mat_1", UserID: "usr_1", Status: models.MatchStatusCompleted,
	}

	srv := wsTestServer(t, f.ws, "auth0|tester")
	conn := dialWS(t, srv)
	waitForRoom(t, f.ws, "auth0|tester", 1)

	require.NoError(t, f.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventMatchStatusChanged,
		Payload: models.StatusChange{ID: "mat_1", Status: "completed", Ts: time.Now()},
	}))

	msg := readWSMessage(t, conn)
	assert.Equal(t, "match:update", msg.Type)
	assert.Equal(t, "completed", msg.Payload.(map[string]interface{})["status"])
}

func TestBridgeDropsEventsForDeletedRows(t *testing.T) {
	f := newBridgeFixture(t)
	// No resume row exists; the re-read comes back empty

	srv := wsTestServer(t, f.ws, "auth0|tester")
	conn := dialWS(t, srv)
	waitForRoom(t, f.ws, "auth0|tester", 1)

	require.NoError(t, f.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventResumeStatusChanged,
		Payload: models.StatusChange{ID: "res_gone", Status: "ready", Ts: time.Now()},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
