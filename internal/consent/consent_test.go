package consent

import (
	"context"
	"testing"
	"time"

	"github.com/Mutter0815/MassTexter/internal/campaign"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"  5551234567 ": "5551234567",
		"555 123 4567":  "5551234567",
		"5551234567":    "5551234567",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		body       string
		wantStatus string
		wantReply  string
	}{
		{"yes", campaign.ConsentOptedIn, ReplyOptedIn},
		{"YES", campaign.ConsentOptedIn, ReplyOptedIn},
		{"#Yes", campaign.ConsentOptedIn, ReplyOptedIn},
		{"  yes  ", campaign.ConsentOptedIn, ReplyOptedIn},
		{"no", campaign.ConsentOptedOut, ReplyOptedOut},
		{"#NO", campaign.ConsentOptedOut, ReplyOptedOut},
		{"maybe", "", ReplyClarify},
		{"", "", ReplyClarify},
		{"yes please", "", ReplyClarify},
	}
	for _, tt := range tests {
		status, reply := Classify(tt.body)
		if status != tt.wantStatus {
			t.Errorf("Classify(%q) status = %q, want %q", tt.body, status, tt.wantStatus)
		}
		if reply != tt.wantReply {
			t.Errorf("Classify(%q) reply = %q, want %q", tt.body, reply, tt.wantReply)
		}
	}
}

type fakeRegistry struct {
	phone  string
	status string
	at     time.Time
	calls  int
}

func (f *fakeRegistry) ApplyReply(ctx context.Context, phone, newStatus string, at time.Time) error {
	f.phone = phone
	f.status = newStatus
	f.at = at
	f.calls++
	return nil
}

func TestHandleInbound_OptOutFromUnknownNumber(t *testing.T) {
	reg := &fakeRegistry{}
	h := NewHandler(reg)

	reply, err := h.HandleInbound(context.Background(), "3333333333", "NO")
	if err != nil {
		t.Fatal(err)
	}
	if reply == "" {
		t.Fatal("want a non-empty unsubscribe confirmation")
	}
	if reg.calls != 1 {
		t.Fatalf("want exactly one registry write, got %d", reg.calls)
	}
	if reg.phone != "3333333333" || reg.status != campaign.ConsentOptedOut {
		t.Fatalf("registry got phone=%q status=%q", reg.phone, reg.status)
	}
}

func TestHandleInbound_UnrecognizedLeavesStatus(t *testing.T) {
	reg := &fakeRegistry{}
	h := NewHandler(reg)

	reply, err := h.HandleInbound(context.Background(), "555 123 4567", "maybe")
	if err != nil {
		t.Fatal(err)
	}
	if reply != ReplyClarify {
		t.Fatalf("want clarification reply, got %q", reply)
	}
	if reg.status != "" {
		t.Fatalf("unrecognized keyword must not set a status, got %q", reg.status)
	}
	if reg.phone != "5551234567" {
		t.Fatalf("phone not normalized: %q", reg.phone)
	}
	if reg.at.IsZero() {
		t.Fatal("last reply time not recorded")
	}
}
