package masking

import "testing"

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"abcd":             "****",
		"supersecret":      "****cret",
		"tok_live_abcdefg": "tok_live_****defg",
	}
	for input, want := range cases {
		if got := MaskSecret(input); got != want {
			t.Fatalf("MaskSecret(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMaskParamsMasksOnlySensitiveKeys(t *testing.T) {
	masked := MaskParams(map[string]any{
		"userName":     "merchant-api",
		"password":     "hunter2hunter2",
		"paymentToken": "eyJhbGciOi",
		"amount":       1000,
		"jsonParams": map[string]any{
			"token": "nested-secret",
			"email": "a@b.c",
		},
	})

	if masked["userName"] != "merchant-api" {
		t.Fatalf("userName must not be masked: %v", masked["userName"])
	}
	if masked["password"] != "****ter2" {
		t.Fatalf("unexpected password mask: %v", masked["password"])
	}
	if masked["paymentToken"] != "****ciOi" {
		t.Fatalf("unexpected token mask: %v", masked["paymentToken"])
	}
	if masked["amount"] != 1000 {
		t.Fatalf("amount must be copied: %v", masked["amount"])
	}

	nested := masked["jsonParams"].(map[string]any)
	if nested["token"] != "****cret" || nested["email"] != "a@b.c" {
		t.Fatalf("unexpected nested mask: %v", nested)
	}
}

func TestMaskParamsNonStringSecret(t *testing.T) {
	masked := MaskParams(map[string]any{"pan": 4111111111111111})
	if masked["pan"] != "****" {
		t.Fatalf("expected numeric secret to be masked, got %v", masked["pan"])
	}
}
