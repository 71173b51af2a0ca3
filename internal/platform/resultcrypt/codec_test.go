package resultcrypt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/platform/apperr"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	return NewCodec("unit-test-secret", zerolog.Nop())
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	payload := map[string]any{
		"hemoglobin": "14.2 g/dL",
		"wbc":        "6.1 x10^9/L",
	}
	encoded, err := codec.Encrypt(payload)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	raw, err := codec.Decrypt(encoded)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal decrypted: %v", err)
	}
	if got["hemoglobin"] != "14.2 g/dL" || got["wbc"] != "6.1 x10^9/L" {
		t.Errorf("round trip mismatch: %v", got)
	}
}

func TestEncryptedFormatShape(t *testing.T) {
	codec := newTestCodec(t)

	encoded, err := codec.Encrypt(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		t.Fatalf("expected 3 colon-separated fields, got %d", len(parts))
	}
	if len(parts[0]) != 32 {
		t.Errorf("iv field length = %d, want 32", len(parts[0]))
	}
	if len(parts[1]) != 32 {
		t.Errorf("salt field length = %d, want 32", len(parts[1]))
	}
	if !IsEncrypted(encoded) {
		t.Error("expected IsEncrypted true for encrypted output")
	}
}

func TestEncryptProducesFreshSaltAndIV(t *testing.T) {
	codec := newTestCodec(t)

	a, err := codec.Encrypt(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := codec.Encrypt(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if a == b {
		t.Error("expected distinct ciphertexts for identical plaintext")
	}
}

func TestDecryptPlainJSON(t *testing.T) {
	codec := newTestCodec(t)

	raw, err := codec.Decrypt(`{"glucose":"5.4 mmol/L"}`)
	if err != nil {
		t.Fatalf("decrypt plain json: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["glucose"] != "5.4 mmol/L" {
		t.Errorf("got %v", got)
	}
}

func TestDecryptLegacyEnvelopeNoneMethod(t *testing.T) {
	codec := newTestCodec(t)

	// Double-JSON-encoded plaintext written by the earliest envelope format.
	inner := `{"creatinine":"88 umol/L"}`
	envelope, err := json.Marshal(map[string]any{
		"encryptionMethod": "none",
		"encryptedData":    inner,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	raw, err := codec.Decrypt(string(envelope))
	if err != nil {
		t.Fatalf("decrypt legacy envelope: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["creatinine"] != "88 umol/L" {
		t.Errorf("got %v", got)
	}
}

func TestDecryptLegacyEnvelopeObjectData(t *testing.T) {
	codec := newTestCodec(t)

	raw, err := codec.Decrypt(`{"encryptionMethod":"none","encryptedData":{"sodium":"140 mmol/L"}}`)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["sodium"] != "140 mmol/L" {
		t.Errorf("got %v", got)
	}
}

func TestDecryptGarbageReturnsErrDecode(t *testing.T) {
	codec := newTestCodec(t)

	_, err := codec.Decrypt("not json, not a triple")
	if !errors.Is(err, apperr.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestDecryptWrongSecret(t *testing.T) {
	codec := newTestCodec(t)
	other := NewCodec("a-different-secret", zerolog.Nop())

	encoded, err := codec.Encrypt(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := other.Decrypt(encoded); !errors.Is(err, apperr.ErrDecode) {
		t.Errorf("expected ErrDecode with wrong secret, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	codec := newTestCodec(t)
	encoded, err := codec.Encrypt(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	tests := []struct {
		name  string
		input string
		want  Format
	}{
		{"current triple", encoded, FormatEncrypted},
		{"legacy envelope", `{"encryptionMethod":"none","encryptedData":"{}"}`, FormatLegacyJSON},
		{"plain object", `{"a":1}`, FormatPlainJSON},
		{"plain array", `[1,2,3]`, FormatPlainJSON},
		{"garbage", "::::", FormatUnknown},
		{"triple with short fields", "abcd:ef01:23456789", FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.input); got != tt.want {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsEncrypted(t *testing.T) {
	if IsEncrypted(`{"a":1}`) {
		t.Error("bare JSON should not report encrypted")
	}
	if !IsEncrypted(`{"encryptionMethod":"aes-256-cbc","encryptedData":"ff"}`) {
		t.Error("legacy envelope should report encrypted")
	}
}

func TestDisabledCodecStoresPlainJSON(t *testing.T) {
	codec := NewCodec("", zerolog.Nop())

	if codec.IsEnabled() {
		t.Fatal("expected disabled codec")
	}
	encoded, err := codec.Encrypt(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if DetectFormat(encoded) != FormatPlainJSON {
		t.Errorf("expected plain JSON output when disabled, got %q", encoded)
	}

	raw, err := codec.Decrypt(encoded)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["k"] != "v" {
		t.Errorf("got %v", got)
	}
}
