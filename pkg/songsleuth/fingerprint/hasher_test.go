package fingerprint

import (
	"testing"
)

func peak(frame, bin int) Peak {
	return Peak{TimeIdx: frame, FreqIdx: bin, Magnitude: 10}
}

func TestCreateAddressRoundTrip(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		anchor, target Peak
	}{
		{peak(0, 0), peak(1, 1)},
		{peak(10, 1023), peak(210, 5)},
		{peak(3, 512), peak(7, 1023)},
	}

	for _, tt := range tests {
		addr, ok := createAddress(tt.anchor, tt.target, cfg)
		if !ok {
			t.Fatalf("createAddress(%v, %v) rejected a valid pair", tt.anchor, tt.target)
		}
		a, b, d := Decode(addr)
		if a != tt.anchor.FreqIdx || b != tt.target.FreqIdx || d != tt.target.TimeIdx-tt.anchor.TimeIdx {
			t.Errorf("Decode(%#x) = (%d,%d,%d)", addr, a, b, d)
		}
		if !Valid(addr, cfg) {
			t.Errorf("Valid(%#x) = false", addr)
		}
	}
}

func TestCreateAddressRejects(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name           string
		anchor, target Peak
	}{
		{"same frame", peak(5, 10), peak(5, 20)},
		{"beyond target zone", peak(0, 10), peak(cfg.MaxDelta+1, 20)},
		{"anchor bin overflow", peak(0, 1024), peak(1, 20)},
		{"target bin overflow", peak(0, 10), peak(1, 2048)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := createAddress(tt.anchor, tt.target, cfg); ok {
				t.Errorf("Expected pair to be rejected")
			}
		})
	}
}

func TestHashesFanOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FanOut = 3

	peaks := make([]Peak, 10)
	for i := range peaks {
		peaks[i] = peak(i, 10+i)
	}

	fps := Hashes(peaks, cfg)
	if len(fps) != 24 {
		t.Fatalf("Expected 24 fingerprints, got %d", len(fps))
	}

	perAnchor := make(map[uint32]int)
	for _, fp := range fps {
		perAnchor[fp.AnchorFrame]++
		a, _, _ := Decode(fp.Hash)
		if a != 10+int(fp.AnchorFrame) {
			t.Errorf("Fingerprint anchored at frame %d carries anchor bin %d", fp.AnchorFrame, a)
		}
	}
	for frame, n := range perAnchor {
		if n > cfg.FanOut {
			t.Errorf("Anchor %d paired %d times, fan-out is %d", frame, n, cfg.FanOut)
		}
	}
}

func TestHashesSkipsSameFrameTargets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FanOut = 1

	peaks := []Peak{peak(0, 10), peak(0, 20), peak(1, 30)}

	fps := Hashes(peaks, cfg)
	if len(fps) != 2 {
		t.Fatalf("Expected 2 fingerprints, got %d", len(fps))
	}
	for _, fp := range fps {
		if _, target, delta := Decode(fp.Hash); target != 30 || delta != 1 {
			t.Errorf("Unexpected pair target=%d delta=%d", target, delta)
		}
	}
}

func TestHashesTargetZone(t *testing.T) {
	cfg := DefaultConfig()

	if fps := Hashes([]Peak{peak(0, 10), peak(cfg.MaxDelta+1, 20)}, cfg); len(fps) != 0 {
		t.Errorf("Expected no pairs beyond MaxDelta, got %d", len(fps))
	}
	if fps := Hashes([]Peak{peak(0, 10), peak(cfg.MaxDelta, 20)}, cfg); len(fps) != 1 {
		t.Errorf("Expected one pair at MaxDelta, got %d", len(fps))
	}
}

func TestHashesKeepsDuplicates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FanOut = 1

	peaks := []Peak{peak(0, 10), peak(1, 20), peak(5, 10), peak(6, 20)}

	fps := Hashes(peaks, cfg)
	if len(fps) != 3 {
		t.Fatalf("Expected 3 fingerprints, got %d", len(fps))
	}
	if fps[0].Hash != fps[2].Hash {
		t.Fatalf("Expected repeated pair to produce the same hash: %#x vs %#x", fps[0].Hash, fps[2].Hash)
	}
	if fps[0].AnchorFrame == fps[2].AnchorFrame {
		t.Errorf("Duplicate hashes should keep their own anchors")
	}
}

func TestHashesEmpty(t *testing.T) {
	if fps := Hashes(nil, DefaultConfig()); len(fps) != 0 {
		t.Errorf("Expected no fingerprints, got %d", len(fps))
	}
}
