package discovery

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestNewAdvertiser(t *testing.T) {
	t.Run("random instance name", func(t *testing.T) {
		adv, err := NewAdvertiser(AdvertiserConfig{ServerFactory: NewMockMDNSServerFactory()})
		if err != nil {
			t.Fatalf("NewAdvertiser() error = %v", err)
		}
		if !regexp.MustCompile(`^[0-9A-F]{16}$`).MatchString(adv.InstanceName()) {
			t.Errorf("InstanceName() = %q, want 16 uppercase hex characters", adv.InstanceName())
		}
	})

	t.Run("given instance name", func(t *testing.T) {
		adv, err := NewAdvertiser(AdvertiserConfig{
			InstanceName:  "studio-pc",
			ServerFactory: NewMockMDNSServerFactory(),
		})
		if err != nil {
			t.Fatalf("NewAdvertiser() error = %v", err)
		}
		if adv.InstanceName() != "studio-pc" {
			t.Errorf("InstanceName() = %q, want %q", adv.InstanceName(), "studio-pc")
		}
	})

	t.Run("name too long", func(t *testing.T) {
		_, err := NewAdvertiser(AdvertiserConfig{InstanceName: strings.Repeat("x", 64)})
		if err != ErrInvalidInstanceName {
			t.Errorf("NewAdvertiser() error = %v, want %v", err, ErrInvalidInstanceName)
		}
	})
}

func TestAdvertiserStart(t *testing.T) {
	factory := NewMockMDNSServerFactory()
	adv, _ := NewAdvertiser(AdvertiserConfig{InstanceName: "studio", ServerFactory: factory})

	if adv.IsAdvertising() {
		t.Error("IsAdvertising() = true before Start")
	}

	if err := adv.Start(9001, ServiceTXT{WebSocketPort: 9002, TCP: true}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !adv.IsAdvertising() {
		t.Error("IsAdvertising() = false after Start")
	}
	if adv.Port() != 9001 {
		t.Errorf("Port() = %d, want 9001", adv.Port())
	}

	reg, ok := factory.Active()
	if !ok {
		t.Fatal("no active registration")
	}
	if reg.Instance != "studio" || reg.Service != ServiceName || reg.Domain != DefaultDomain || reg.Port != 9001 {
		t.Errorf("registration = %+v", reg)
	}
	got := strings.Join(reg.Text, " ")
	if got != "v=1 ws=9002 tcp=1" {
		t.Errorf("TXT = %q, want %q", got, "v=1 ws=9002 tcp=1")
	}

	if err := adv.Start(9001, ServiceTXT{}); err != ErrAlreadyStarted {
		t.Errorf("Start() second call error = %v, want %v", err, ErrAlreadyStarted)
	}
}

func TestAdvertiserStartInvalid(t *testing.T) {
	adv, _ := NewAdvertiser(AdvertiserConfig{ServerFactory: NewMockMDNSServerFactory()})

	tests := []struct {
		name string
		port int
		txt  ServiceTXT
		want error
	}{
		{"zero port", 0, ServiceTXT{TCP: true}, ErrInvalidPort},
		{"port too large", 70000, ServiceTXT{TCP: true}, ErrInvalidPort},
		{"bad ws port", 9001, ServiceTXT{WebSocketPort: -1}, ErrInvalidPort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := adv.Start(tt.port, tt.txt); err != tt.want {
				t.Errorf("Start() error = %v, want %v", err, tt.want)
			}
			if adv.IsAdvertising() {
				t.Error("IsAdvertising() = true after a failed Start")
			}
		})
	}
}

func TestAdvertiserRegisterFailure(t *testing.T) {
	factory := NewMockMDNSServerFactory()
	boom := errors.New("no multicast")
	factory.SetError(boom)

	adv, _ := NewAdvertiser(AdvertiserConfig{ServerFactory: factory})
	if err := adv.Start(9001, ServiceTXT{TCP: true}); !errors.Is(err, boom) {
		t.Errorf("Start() error = %v, want wrapping %v", err, boom)
	}
	if adv.IsAdvertising() {
		t.Error("IsAdvertising() = true after a failed registration")
	}
}

func TestAdvertiserUpdate(t *testing.T) {
	factory := NewMockMDNSServerFactory()
	adv, _ := NewAdvertiser(AdvertiserConfig{InstanceName: "studio", ServerFactory: factory})

	if err := adv.Update(9001, ServiceTXT{TCP: true}); err != ErrNotStarted {
		t.Errorf("Update() before Start error = %v, want %v", err, ErrNotStarted)
	}

	txt := ServiceTXT{WebSocketPort: 9002, TCP: true}
	if err := adv.Start(9001, txt); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Unchanged values keep the registration.
	if err := adv.Update(9001, txt); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if n := len(factory.Registrations()); n != 1 {
		t.Errorf("registrations = %d after a no-op Update, want 1", n)
	}

	if err := adv.Update(9101, ServiceTXT{WebSocketPort: 9102, TCP: true}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	regs := factory.Registrations()
	if len(regs) != 2 {
		t.Fatalf("registrations = %d, want 2", len(regs))
	}
	if !regs[0].IsShutdown() {
		t.Error("old registration still active after Update")
	}
	if regs[1].Port != 9101 || regs[1].Instance != "studio" {
		t.Errorf("new registration = %+v", regs[1])
	}
	if adv.Port() != 9101 {
		t.Errorf("Port() = %d, want 9101", adv.Port())
	}
}

func TestAdvertiserStopAndClose(t *testing.T) {
	factory := NewMockMDNSServerFactory()
	adv, _ := NewAdvertiser(AdvertiserConfig{ServerFactory: factory})

	if err := adv.Stop(); err != ErrNotStarted {
		t.Errorf("Stop() before Start error = %v, want %v", err, ErrNotStarted)
	}

	if err := adv.Start(9001, ServiceTXT{TCP: true}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := adv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, ok := factory.Active(); ok {
		t.Error("registration still active after Stop")
	}
	if adv.Port() != 0 {
		t.Errorf("Port() = %d after Stop, want 0", adv.Port())
	}

	// Restart after Stop is allowed.
	if err := adv.Start(9001, ServiceTXT{TCP: true}); err != nil {
		t.Fatalf("Start() after Stop error = %v", err)
	}
	if err := adv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := factory.Active(); ok {
		t.Error("registration still active after Close")
	}
	if err := adv.Close(); err != ErrClosed {
		t.Errorf("Close() second call error = %v, want %v", err, ErrClosed)
	}
	if err := adv.Start(9001, ServiceTXT{TCP: true}); err != ErrClosed {
		t.Errorf("Start() after Close error = %v, want %v", err, ErrClosed)
	}
}

func TestAdvertiserWithContext(t *testing.T) {
	factory := NewMockMDNSServerFactory()
	ctx, cancel := context.WithCancel(context.Background())

	adv, err := NewAdvertiserWithContext(ctx, AdvertiserConfig{ServerFactory: factory})
	if err != nil {
		t.Fatalf("NewAdvertiserWithContext() error = %v", err)
	}
	if err := adv.Start(9001, ServiceTXT{TCP: true}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for adv.IsAdvertising() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if adv.IsAdvertising() {
		t.Error("still advertising after context cancellation")
	}
	if err := adv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
