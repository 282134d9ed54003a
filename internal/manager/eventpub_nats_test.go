package manager

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

func TestNATSPublisherEncodesEvent(t *testing.T) {
	var subject string
	var body []byte
	p := newNATSPublisher(func(s string, data []byte) error {
		subject, body = s, data
		return nil
	}, "", zerolog.Nop())
	p.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	p.Publish(Event{Name: EventFetchDone, ModelDir: "/m", Fields: map[string]any{"files": 2}})

	if subject != DefaultEventSubject {
		t.Fatalf("subject=%q", subject)
	}
	var msg eventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := ulid.Parse(msg.ID); err != nil {
		t.Fatalf("id %q is not a ulid: %v", msg.ID, err)
	}
	if msg.Name != EventFetchDone || msg.ModelDir != "/m" || msg.Fields["files"] != float64(2) {
		t.Fatalf("msg=%+v", msg)
	}
	if !msg.Time.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("time=%v", msg.Time)
	}
}

func TestNATSPublisherSwallowsErrors(t *testing.T) {
	calls := 0
	p := newNATSPublisher(func(string, []byte) error {
		calls++
		return errors.New("nats: connection closed")
	}, "custom.subject", zerolog.Nop())
	p.Publish(Event{Name: EventReady})
	if calls != 1 || p.subject != "custom.subject" {
		t.Fatalf("calls=%d subject=%q", calls, p.subject)
	}
}

func TestManagerPublishesThroughNATS(t *testing.T) {
	var names []string
	p := newNATSPublisher(func(_ string, data []byte) error {
		var msg eventMessage
		_ = json.Unmarshal(data, &msg)
		names = append(names, msg.Name)
		return nil
	}, "", zerolog.Nop())
	m := newTestManager(helloWorld(), nil, p)
	if err := m.Start(testCtx(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(names) != 3 || names[2] != EventReady {
		t.Fatalf("names=%v", names)
	}
}
