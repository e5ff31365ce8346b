package connection

import (
	"strings"
	"testing"
)

func TestSubscriptions_ClientLifecycle(t *testing.T) {
	s := NewSubscriptions()

	if !s.Subscribe("client1", "AAPL", "GOOGL") {
		t.Error("Subscribe(AAPL, GOOGL) reported no change")
	}
	if got := strings.Join(s.Client("client1"), ","); got != "AAPL,GOOGL" {
		t.Errorf("Client(client1) = %s, want AAPL,GOOGL", got)
	}

	s.Subscribe("client1", "MSFT")
	if got := len(s.Client("client1")); got != 3 {
		t.Errorf("len(Client(client1)) = %d, want 3", got)
	}

	if !s.Unsubscribe("client1", "GOOGL") {
		t.Error("Unsubscribe(GOOGL) reported no change")
	}
	if got := strings.Join(s.Client("client1"), ","); got != "AAPL,MSFT" {
		t.Errorf("Client(client1) = %s, want AAPL,MSFT", got)
	}

	if !s.UnsubscribeAll("client1") {
		t.Error("UnsubscribeAll reported no change")
	}
	if got := s.Client("client1"); len(got) != 0 {
		t.Errorf("Client(client1) = %v, want empty", got)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestSubscriptions_UnionIsReferenceCounted(t *testing.T) {
	s := NewSubscriptions()
	s.Subscribe("a", "SPY", "QQQ")

	v := s.Version()
	if s.Subscribe("b", "spy ") {
		t.Error("second client on SPY changed the union")
	}
	if s.Version() != v {
		t.Errorf("Version() = %d, want %d", s.Version(), v)
	}
	if got := strings.Join(s.Clients("SPY"), ","); got != "a,b" {
		t.Errorf("Clients(SPY) = %s, want a,b", got)
	}

	if s.Unsubscribe("a", "SPY") {
		t.Error("SPY left the union while b still wants it")
	}
	if !s.Has([]byte("SPY")) {
		t.Error("Has(SPY) = false, want true")
	}

	if !s.UnsubscribeAll("b") {
		t.Error("UnsubscribeAll(b) did not drop SPY")
	}
	symbols, version := s.Symbols()
	if strings.Join(symbols, ",") != "QQQ" {
		t.Errorf("Symbols() = %v, want [QQQ]", symbols)
	}
	if version <= v {
		t.Errorf("version = %d, want > %d", version, v)
	}
	if s.Has([]byte("SPY")) {
		t.Error("Has(SPY) = true after last client left")
	}
}

func TestSubscriptions_Changed(t *testing.T) {
	s := NewSubscriptions()

	select {
	case <-s.Changed():
		t.Fatal("Changed signalled before any change")
	default:
	}

	s.Subscribe("a", "SPY")
	s.Subscribe("a", "QQQ")
	select {
	case <-s.Changed():
	default:
		t.Fatal("Changed not signalled after Subscribe")
	}

	s.Subscribe("a", "SPY")
	select {
	case <-s.Changed():
		t.Error("Changed signalled for a duplicate symbol")
	default:
	}
}

func TestSubscriptions_UnknownClient(t *testing.T) {
	s := NewSubscriptions()
	if s.Unsubscribe("nobody", "SPY") || s.UnsubscribeAll("nobody") {
		t.Error("unknown client reported a change")
	}
	if s.Subscribe("a", "", "  ") {
		t.Error("blank symbols changed the union")
	}
	if got := s.Clients(""); len(got) != 0 {
		t.Errorf("Clients(\"\") = %v, want none", got)
	}
	if got := s.Client("a"); got != nil {
		t.Errorf("Client(a) = %v, want nil after blank subscribe", got)
	}
}
