package utils

import (
	"net/url"
	"strings"
	"testing"
)

func TestTwilioSignatureRoundTrip(t *testing.T) {
	params := url.Values{"Body": {"add milk"}, "From": {"+15551112222"}, "To": {"+15550000000"}}
	u := "https://example.com/twilio/webhook"
	sig := TwilioSignature("token", u, params)

	if !ValidateTwilioSignature("token", u, params, sig) {
		t.Fatalf("valid signature rejected")
	}
	params.Set("Body", "remove milk")
	if ValidateTwilioSignature("token", u, params, sig) {
		t.Fatalf("tampered body accepted")
	}
	if ValidateTwilioSignature("", u, params, sig) {
		t.Fatalf("empty token must never validate")
	}
}

func TestTwiMLEscapes(t *testing.T) {
	out := TwiML(`Added "bread & butter" <3`)
	if !strings.Contains(out, "<Response><Message>Added &#34;bread &amp; butter&#34; &lt;3</Message></Response>") {
		t.Fatalf("unexpected twiml %s", out)
	}
	if empty := TwiML(""); !strings.HasSuffix(empty, "<Response></Response>") {
		t.Fatalf("unexpected empty twiml %s", empty)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"(555) 123-4567":  "+15551234567",
		"1-555-123-4567":  "+15551234567",
		"+44 20 7946 0958": "+442079460958",
	}
	for in, want := range cases {
		got, err := NormalizePhone(in)
		if err != nil || got != want {
			t.Fatalf("NormalizePhone(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "12345", "555-CALL-NOW", "+12"} {
		if _, err := NormalizePhone(bad); err == nil {
			t.Fatalf("NormalizePhone(%q) should fail", bad)
		}
	}
}

func TestNewNumericCode(t *testing.T) {
	code, err := NewNumericCode(6)
	if err != nil {
		t.Fatalf("code: %v", err)
	}
	if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
		t.Fatalf("unexpected code %q", code)
	}
}
