package report

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("Crashed on login")
	b := Fingerprint("  crashed on login  ")
	if a != b {
		t.Fatalf("normalized inputs should match: %q vs %q", a, b)
	}
	if len(a) != fingerprintLen {
		t.Fatalf("unexpected digest length: %d", len(a))
	}
}

func TestFingerprintDiffers(t *testing.T) {
	if Fingerprint("Crashed on login") == Fingerprint("Totally different text") {
		t.Fatal("different texts should yield different digests")
	}
}
