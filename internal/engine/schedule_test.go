package engine

import (
	"errors"
	"testing"
	"time"
)

func TestScheduleStop_Supersedes(t *testing.T) {
	s := newTestServer(t, Config{}, noopHandler)

	start := time.Now()
	first, err := s.ScheduleStop(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("ScheduleStop() error = %v", err)
	}
	second, err := s.ScheduleStop(time.Second)
	if err != nil {
		t.Fatalf("ScheduleStop() error = %v", err)
	}

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("superseded stop never resolved")
	}
	if !errors.Is(first.Err(), ErrStopCanceled) {
		t.Errorf("first.Err() = %v, want ErrStopCanceled", first.Err())
	}

	time.Sleep(400 * time.Millisecond)
	if !s.IsRunning() {
		t.Fatal("server stopped at the superseded deadline")
	}

	waitDone(t, s, 5*time.Second)
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Errorf("server stopped after %v, want about 1s", elapsed)
	}

	select {
	case <-second.Done():
	case <-time.After(time.Second):
		t.Fatal("second stop never resolved")
	}
	if err := second.Err(); err != nil {
		t.Errorf("second.Err() = %v, want nil", err)
	}
	if !second.Deadline().After(first.Deadline()) {
		t.Error("second deadline should be later than the first")
	}
}

func TestScheduleStop_StartsServer(t *testing.T) {
	s := newTestServer(t, Config{}, noopHandler)

	if _, err := s.ScheduleStop(time.Hour); err != nil {
		t.Fatalf("ScheduleStop() error = %v", err)
	}
	if !s.IsRunning() {
		t.Error("ScheduleStop() should start a stopped server")
	}
}

func TestScheduleStop_CanceledByStop(t *testing.T) {
	s := newTestServer(t, Config{}, noopHandler)

	ss, err := s.ScheduleStop(time.Hour)
	if err != nil {
		t.Fatalf("ScheduleStop() error = %v", err)
	}
	_ = s.Stop()

	select {
	case <-ss.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduled stop not resolved by Stop")
	}
	if !errors.Is(ss.Err(), ErrStopCanceled) {
		t.Errorf("Err() = %v, want ErrStopCanceled", ss.Err())
	}
	if ss.Cancel() {
		t.Error("Cancel() on a resolved stop should report false")
	}
}

func TestScheduleStop_Cancel(t *testing.T) {
	s := newTestServer(t, Config{}, noopHandler)

	ss, err := s.ScheduleStop(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("ScheduleStop() error = %v", err)
	}
	if !ss.Cancel() {
		t.Fatal("Cancel() = false for a pending stop")
	}

	time.Sleep(200 * time.Millisecond)
	if !s.IsRunning() {
		t.Error("canceled stop still stopped the server")
	}
}

func TestScheduleStop_RetiredServer(t *testing.T) {
	fa := newFakeAcceptor()
	s, err := NewWithListener(fa, Config{}, noopHandler)
	if err != nil {
		t.Fatalf("NewWithListener() error = %v", err)
	}
	_ = s.Stop()

	if _, err := s.ScheduleStop(time.Second); !errors.Is(err, ErrNotRestartable) {
		t.Errorf("ScheduleStop() error = %v, want ErrNotRestartable", err)
	}
}

func TestScheduleStop_ReportsStopError(t *testing.T) {
	closeErr := errors.New("close failed")
	fa := &failingCloseAcceptor{fakeAcceptor: newFakeAcceptor(), err: closeErr}

	s, err := NewWithListener(fa, Config{}, noopHandler)
	if err != nil {
		t.Fatalf("NewWithListener() error = %v", err)
	}

	ss, err := s.ScheduleStop(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("ScheduleStop() error = %v", err)
	}

	select {
	case <-ss.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled stop never resolved")
	}
	if !errors.Is(ss.Err(), closeErr) {
		t.Errorf("Err() = %v, want %v", ss.Err(), closeErr)
	}
	waitDone(t, s, 5*time.Second)
}
