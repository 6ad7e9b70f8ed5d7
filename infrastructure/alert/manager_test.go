package alert

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSendAlert(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, 5*time.Minute)

	err := mgr.SendCritical("custody inconsistent", map[string]interface{}{"order_id": uint64(3)})
	if err != nil {
		t.Fatalf("SendCritical failed: %v", err)
	}
	if mock.Count() != 1 {
		t.Fatalf("expected 1 alert, got %d", mock.Count())
	}
	alert := mock.GetAlerts()[0]
	if alert.Level != LevelCritical {
		t.Errorf("level = %s, want CRITICAL", alert.Level)
	}
	if alert.Fields["order_id"] != uint64(3) {
		t.Errorf("order_id = %v, want 3", alert.Fields["order_id"])
	}
	if alert.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestThrottle(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Hour)

	for i := 0; i < 3; i++ {
		_ = mgr.SendWarning("transfer failed", nil)
	}
	if mock.Count() != 1 {
		t.Fatalf("throttled alerts delivered: %d", mock.Count())
	}
	_ = mgr.SendCritical("transfer failed", nil)
	if mock.Count() != 2 {
		t.Fatalf("different level should not share throttle key: %d", mock.Count())
	}

	mgr.SetThrottle(0)
	_ = mgr.SendWarning("transfer failed", nil)
	if mock.Count() != 3 {
		t.Fatalf("zero interval should not throttle: %d", mock.Count())
	}
	mgr.ResetThrottle()
}

func TestAllChannelsFail(t *testing.T) {
	mock := NewMockChannel("mock")
	mock.SetShouldError(true)
	mgr := NewManager([]Channel{mock}, time.Minute)
	if err := mgr.SendCritical("boom", nil); err == nil {
		t.Fatal("expected error when every channel fails")
	}

	core, logs := observer.New(zap.InfoLevel)
	mgr.AddChannel(NewLogChannel("log", zap.New(core)))
	mgr.ResetThrottle()
	if err := mgr.SendCritical("boom", map[string]interface{}{"k": "v"}); err != nil {
		t.Fatalf("one healthy channel should suffice: %v", err)
	}
	if logs.Len() != 1 || logs.All()[0].Message != "boom" {
		t.Fatalf("log channel did not record alert: %+v", logs.All())
	}
	if names := mgr.GetChannels(); len(names) != 2 || names[1] != "log" {
		t.Fatalf("unexpected channels %v", names)
	}
}
