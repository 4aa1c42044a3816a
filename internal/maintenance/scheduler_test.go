package maintenance

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type fakeCheckpointer struct {
	calls int
	err   error
}

func (f *fakeCheckpointer) Checkpoint(context.Context) error {
	f.calls++
	return f.err
}

type fakePresence struct{ online, rooms int }

func (f fakePresence) Len() int   { return f.online }
func (f fakePresence) Rooms() int { return f.rooms }

func newTestScheduler(buf *bytes.Buffer) *Scheduler {
	logger := zerolog.New(buf)
	return New(&logger)
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s := newTestScheduler(&bytes.Buffer{})

	if err := s.AddCheckpoint("", &fakeCheckpointer{}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddPresenceReport("", fakePresence{}); err != nil {
		t.Fatal(err)
	}
	if s.Jobs() != 0 {
		t.Fatalf("empty specs must not schedule jobs")
	}

	if err := s.AddCheckpoint("@every 10m", &fakeCheckpointer{}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddPresenceReport("*/5 * * * *", fakePresence{}); err != nil {
		t.Fatal(err)
	}
	if s.Jobs() != 2 {
		t.Fatalf("Jobs = %d, want 2", s.Jobs())
	}

	if err := s.AddCheckpoint("not a schedule", &fakeCheckpointer{}); err == nil {
		t.Fatalf("expected invalid spec to fail")
	}
}

func TestCheckpointJob(t *testing.T) {
	var buf bytes.Buffer
	s := newTestScheduler(&buf)

	cp := &fakeCheckpointer{}
	s.checkpointJob(cp)()
	if cp.calls != 1 {
		t.Fatalf("expected one checkpoint, got %d", cp.calls)
	}

	cp.err = errors.New("disk full")
	s.checkpointJob(cp)()
	if !strings.Contains(buf.String(), "store checkpoint failed") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}
}

func TestPresenceJob(t *testing.T) {
	var buf bytes.Buffer
	s := newTestScheduler(&buf)

	s.presenceJob(fakePresence{online: 3, rooms: 2})()

	out := buf.String()
	if !strings.Contains(out, `"online":3`) || !strings.Contains(out, `"rooms":2`) {
		t.Fatalf("unexpected report %q", out)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := newTestScheduler(&bytes.Buffer{})
	s.Start()
	s.Stop(context.Background())
}
