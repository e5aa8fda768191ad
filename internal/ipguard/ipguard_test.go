package ipguard

import "testing"

func TestGuardEnforcesLimit(t *testing.T) {
	g := New(2, "")

	if !g.CanPublish("1.2.3.4") {
		t.Fatal("expected first connection to be admitted")
	}
	if !g.CanPublish("1.2.3.4") {
		t.Fatal("expected second connection to be admitted")
	}
	if g.CanPublish("1.2.3.4") {
		t.Fatal("expected third connection to be rejected")
	}

	g.Release("1.2.3.4")
	if !g.CanPublish("1.2.3.4") {
		t.Fatal("expected a connection to be admitted after a release")
	}
}

func TestGuardWhitelistExemptsRange(t *testing.T) {
	g := New(1, "10.0.0.0/8")

	if !g.CanPublish("10.1.2.3") {
		t.Fatal("expected whitelisted address to be admitted")
	}
	if !g.CanPublish("10.1.2.3") {
		t.Fatal("expected whitelisted address to bypass the limit entirely")
	}
}

func TestGuardWildcardWhitelistExemptsEverything(t *testing.T) {
	g := New(1, "*")

	if !g.CanPublish("8.8.8.8") || !g.CanPublish("8.8.8.8") {
		t.Fatal("expected wildcard whitelist to exempt all addresses")
	}
}

func TestGuardZeroLimitDisablesCap(t *testing.T) {
	g := New(0, "")
	for i := 0; i < 5; i++ {
		if !g.CanPublish("9.9.9.9") {
			t.Fatalf("expected connection %d to be admitted with no cap", i)
		}
	}
}
