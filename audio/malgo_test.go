package audio

import (
	"encoding/hex"
	"testing"

	"github.com/gen2brain/malgo"
)

func TestDeviceIDHexRoundTrip(t *testing.T) {
	var id malgo.DeviceID
	for i := range id {
		id[i] = byte(i * 7)
	}

	s := deviceIDString(id)
	raw, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("encoded ID is not valid hex: %v", err)
	}

	var back malgo.DeviceID
	copy(back[:], raw)
	if back != id {
		t.Fatal("device ID changed across hex round trip")
	}
}
