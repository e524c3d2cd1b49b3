package stripegate

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "whsec_test"

func TestParseWebhookRoundTrip(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"charge.succeeded","charge_id":"ch_1"}`)
	header := SignPayload(payload, testSecret, time.Now())

	event, err := ParseWebhook(payload, header, testSecret)
	if err != nil {
		t.Fatalf("ParseWebhook failed: %v", err)
	}
	if event.Type != "charge.succeeded" || event.ChargeID != "ch_1" {
		t.Errorf("decoded event = %+v", event)
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"charge.failed","charge_id":"ch_1"}`)
	header := SignPayload(payload, testSecret, time.Now())

	tampered := []byte(`{"id":"evt_1","type":"charge.succeeded","charge_id":"ch_1"}`)
	if err := VerifySignature(tampered, header, testSecret, 0); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("want ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := SignPayload(payload, testSecret, time.Now())

	if err := VerifySignature(payload, header, "whsec_other", 0); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("want ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := SignPayload(payload, testSecret, time.Now().Add(-10*time.Minute))

	if err := VerifySignature(payload, header, testSecret, 5*time.Minute); !errors.Is(err, ErrStaleWebhook) {
		t.Fatalf("want ErrStaleWebhook, got %v", err)
	}
}

func TestVerifySignatureRejectsMalformedHeader(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	for _, header := range []string{"", "t=abc,v1=00", "v1=deadbeef", "t=1700000000"} {
		if err := VerifySignature(payload, header, testSecret, 0); err == nil {
			t.Errorf("header %q accepted", header)
		}
	}
}
