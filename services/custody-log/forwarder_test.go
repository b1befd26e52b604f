package custodylog

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobescrow/native/custody"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

type recordingServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	server   *httptest.Server
}

func newRecordingServer(t *testing.T) *recordingServer {
	t.Helper()
	rec := &recordingServer{}
	rec.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		rec.mu.Lock()
		rec.requests = append(rec.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		rec.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(rec.server.Close)
	return rec
}

func (rec *recordingServer) snapshot() []recordedRequest {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]recordedRequest, len(rec.requests))
	copy(out, rec.requests)
	return out
}

func testEventAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestForwarderShipsEvents(t *testing.T) {
	rec := newRecordingServer(t)
	forwarder := NewForwarder(NewClient(rec.server.URL), 31337, nil)

	id := [32]byte{0xAB}
	forwarder.Emit(custody.CreatedEvent{
		ID:         id,
		Variant:    custody.VariantFixedPair,
		Realtor:    testEventAddr(0x01),
		Contractor: testEventAddr(0x02),
		Amount:     big.NewInt(5000),
		CreatedAt:  1_700_000_000,
	})
	forwarder.Emit(custody.FundedEvent{
		ID:      id,
		Realtor: testEventAddr(0x01),
		Amount:  big.NewInt(5000),
	})
	forwarder.Close()

	requests := rec.snapshot()
	require.Len(t, requests, 2)

	require.Equal(t, "/escrows", requests[0].Path)
	require.Equal(t, float64(31337), requests[0].Body["chain_id"])
	require.Equal(t, "5000", requests[0].Body["escrow_amount_wei"])

	require.Contains(t, requests[1].Path, "/events")
	require.Equal(t, "custody.funded", requests[1].Body["event_name"])
	require.NotEmpty(t, requests[1].Body["actor_address"])
}

func TestForwarderEmitAfterCloseIsNoop(t *testing.T) {
	rec := newRecordingServer(t)
	forwarder := NewForwarder(NewClient(rec.server.URL), 31337, nil)
	forwarder.Close()

	// Must not panic or block.
	forwarder.Emit(custody.ApprovedEvent{ID: [32]byte{1}, Realtor: testEventAddr(0x01)})
	require.Empty(t, rec.snapshot())
}

func TestForwarderSurvivesUnreachableCollaborator(t *testing.T) {
	// Point at a closed listener; shipping fails but nothing else breaks.
	rec := newRecordingServer(t)
	url := rec.server.URL
	rec.server.Close()

	forwarder := NewForwarder(NewClient(url), 31337, nil)
	forwarder.Emit(custody.FundedEvent{ID: [32]byte{1}, Realtor: testEventAddr(0x01), Amount: big.NewInt(1)})
	done := make(chan struct{})
	go func() {
		forwarder.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Close blocked on a failed ship")
	}
}

type bareEvent struct{}

func (bareEvent) EventType() string { return "custody.bare" }

func TestForwarderIgnoresNonRecordEvents(t *testing.T) {
	rec := newRecordingServer(t)
	forwarder := NewForwarder(NewClient(rec.server.URL), 31337, nil)
	forwarder.Emit(bareEvent{})
	forwarder.Close()
	require.Empty(t, rec.snapshot())
}
