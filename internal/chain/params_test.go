package chain

import "testing"

func TestGetKnownNetworks(t *testing.T) {
	for _, n := range []Network{Mainnet, Testnet10} {
		p, err := Get(n)
		if err != nil {
			t.Fatalf("Get(%s): %v", n, err)
		}
		if p.Decimals != 8 {
			t.Errorf("expected 8 decimals, got %d", p.Decimals)
		}
	}
}

func TestParseNetworkRejectsUnknown(t *testing.T) {
	if _, err := ParseNetwork("devnet"); err == nil {
		t.Error("expected error for unrecognized network")
	}
	if n, err := ParseNetwork("testnet-10"); err != nil || n != Testnet10 {
		t.Errorf("ParseNetwork(testnet-10) = %v, %v", n, err)
	}
}
