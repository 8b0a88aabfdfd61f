package cookie

import "testing"

func TestClientJarMintsAndReusesClientCookie(t *testing.T) {
	j := NewClientJar()

	first := j.Option("192.0.2.53:53")
	if len(first) != clientCookieSize {
		t.Fatalf("first Option() len = %d, want %d", len(first), clientCookieSize)
	}

	second := j.Option("192.0.2.53:53")
	if string(first) != string(second) {
		t.Error("Option() should reuse the same client cookie for a given server")
	}

	other := j.Option("192.0.2.54:53")
	if string(first) == string(other) {
		t.Error("Option() should mint a distinct client cookie per server")
	}
}

func TestClientJarRemembersServerCookie(t *testing.T) {
	j := NewClientJar()
	opt := j.Option("192.0.2.53:53")

	serverCookie := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	echoed := append(append([]byte(nil), opt...), serverCookie...)
	j.Remember("192.0.2.53:53", echoed)

	next := j.Option("192.0.2.53:53")
	if len(next) != clientCookieSize+len(serverCookie) {
		t.Fatalf("Option() after Remember len = %d, want %d", len(next), clientCookieSize+len(serverCookie))
	}
	if string(next[clientCookieSize:]) != string(serverCookie) {
		t.Error("Option() should echo the remembered server cookie")
	}
}

func TestClientJarRemembersIgnoresMismatchedClientCookie(t *testing.T) {
	j := NewClientJar()
	j.Option("192.0.2.53:53")

	wrongClient := make([]byte, clientCookieSize+8)
	j.Remember("192.0.2.53:53", wrongClient)

	if got := j.Option("192.0.2.53:53"); len(got) != clientCookieSize {
		t.Errorf("Remember() with mismatched client cookie should not attach a server cookie, got len %d", len(got))
	}
}

func TestClientJarRemembersIgnoresUnknownServer(t *testing.T) {
	j := NewClientJar()
	j.Remember("192.0.2.99:53", make([]byte, clientCookieSize+8))
	if got := j.Option("192.0.2.99:53"); len(got) != clientCookieSize {
		t.Errorf("Remember() for a server never queried should be a no-op, got len %d", len(got))
	}
}

func BenchmarkClientJarOption(b *testing.B) {
	j := NewClientJar()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j.Option("192.0.2.53:53")
	}
}
