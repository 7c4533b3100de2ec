package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestRecipientsSurvivesJSONRoundTrip(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	ev := Event{
		Type:    EventPaymentCaptured,
		Payload: map[string]any{"user_ids": []string{a.String(), b.String(), "not-a-uuid"}},
	}

	if got := ev.Recipients(); len(got) != 2 {
		t.Fatalf("Recipients() before encoding = %v, want 2 ids", got)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	got := decoded.Recipients()
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("Recipients() after decoding = %v, want [%s %s]", got, a, b)
	}
}

type recordingPublisher struct {
	streams []string
	err     error
}

func (r *recordingPublisher) Publish(_ context.Context, stream string, _ Event) error {
	r.streams = append(r.streams, stream)
	return r.err
}

func TestMultiPublisherFansOut(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker down")}
	ok := &recordingPublisher{}

	err := MultiPublisher{failing, ok}.Publish(context.Background(), StreamWallet, Event{Type: EventWalletUpdated})
	if err == nil {
		t.Error("expected the first publisher error to be returned")
	}
	if len(ok.streams) != 1 || ok.streams[0] != StreamWallet {
		t.Errorf("second publisher got %v, want one %s publish", ok.streams, StreamWallet)
	}
}
