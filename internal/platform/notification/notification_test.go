package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestSMTPConfig_Configured(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
		want bool
	}{
		{"complete", SMTPConfig{Host: "smtp.example.com", Port: 587, User: "u", Password: "p"}, true},
		{"missing host", SMTPConfig{Port: 587, User: "u", Password: "p"}, false},
		{"missing port", SMTPConfig{Host: "h", User: "u", Password: "p"}, false},
		{"missing user", SMTPConfig{Host: "h", Port: 25, Password: "p"}, false},
		{"missing password", SMTPConfig{Host: "h", Port: 25, User: "u"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSMTPSender_NotConfigured(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com"})
	err := s.SendEmail(context.Background(), Email{From: "a@h.test", To: "b@i.test", Subject: "s", Body: "b"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestBuildMessage_InvalidAddress(t *testing.T) {
	if _, err := buildMessage(Email{From: "not an address", To: "b@i.test"}); err == nil {
		t.Error("expected error for invalid from address")
	}
	if _, err := buildMessage(Email{From: "a@h.test", To: ""}); err == nil {
		t.Error("expected error for empty to address")
	}
}

func TestBuildMessage_OK(t *testing.T) {
	msg, err := buildMessage(Email{From: "desk@hospital.test", To: "claims@insurer.test", Subject: "Pre-auth", Body: "details"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := msg.GetToString(); len(got) != 1 {
		t.Errorf("unexpected to header %v", got)
	}
}

func TestMockEmailSender(t *testing.T) {
	m := &MockEmailSender{}
	if err := m.SendEmail(context.Background(), Email{To: "x@y.test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failErr := errors.New("relay down")
	m.ShouldFail = true
	m.FailError = failErr
	if err := m.SendEmail(context.Background(), Email{To: "z@y.test"}); !errors.Is(err, failErr) {
		t.Fatalf("expected relay down, got %v", err)
	}

	calls := m.Calls()
	if len(calls) != 2 || calls[1].To != "z@y.test" {
		t.Errorf("unexpected calls %+v", calls)
	}
}

func TestMockEmailSender_Concurrent(t *testing.T) {
	m := &MockEmailSender{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.SendEmail(context.Background(), Email{To: "c@y.test"})
		}()
	}
	wg.Wait()
	if len(m.Calls()) != 20 {
		t.Errorf("expected 20 calls, got %d", len(m.Calls()))
	}
}
