package exec

import (
	"bytes"
	"testing"
	"time"

	"github.com/mshaverdo/kvd/internal/command"
	"github.com/mshaverdo/kvd/internal/resp"
	"github.com/mshaverdo/kvd/internal/store"
)

func encode(t *testing.T, r resp.Reply) string {
	t.Helper()
	var buf bytes.Buffer
	if err := resp.NewWriter(&buf).WriteReply(r); err != nil {
		t.Fatalf("encode: %s", err)
	}
	return buf.String()
}

func TestExecutePingEcho(t *testing.T) {
	s := store.New()

	got := encode(t, Execute(command.Command{Kind: command.Ping}, s))
	if want := "+PONG\r\n"; got != want {
		t.Fatalf("PING: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.Ping, Msg: "hi", HasMsg: true}, s))
	if want := "$2\r\nhi\r\n"; got != want {
		t.Fatalf("PING hi: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.Echo, Msg: "world"}, s))
	if want := "$5\r\nworld\r\n"; got != want {
		t.Fatalf("ECHO world: got %q, want %q", got, want)
	}
}

func TestExecuteSetGet(t *testing.T) {
	s := store.New()

	got := encode(t, Execute(command.Command{Kind: command.Set, Key: "k", Value: "v"}, s))
	if want := "+OK\r\n"; got != want {
		t.Fatalf("SET: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.Get, Key: "k"}, s))
	if want := "$1\r\nv\r\n"; got != want {
		t.Fatalf("GET: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.Get, Key: "missing"}, s))
	if want := "$-1\r\n"; got != want {
		t.Fatalf("GET missing: got %q, want %q", got, want)
	}
}

func TestExecuteSetWithTTLExpires(t *testing.T) {
	s := store.New()

	Execute(command.Command{Kind: command.Set, Key: "k", Value: "v", HasTTL: true, TTLMillis: 30}, s)
	time.Sleep(60 * time.Millisecond)

	got := encode(t, Execute(command.Command{Kind: command.Get, Key: "k"}, s))
	if want := "$-1\r\n"; got != want {
		t.Fatalf("GET after PX expiry: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.Type, Key: "k"}, s))
	if want := "+none\r\n"; got != want {
		t.Fatalf("TYPE after PX expiry: got %q, want %q", got, want)
	}
}

func TestExecuteListCommands(t *testing.T) {
	s := store.New()

	got := encode(t, Execute(command.Command{Kind: command.RPush, Key: "l", Values: []string{"a", "b", "c"}}, s))
	if want := ":3\r\n"; got != want {
		t.Fatalf("RPUSH: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.LRange, Key: "l", Start: 0, Stop: -1}, s))
	if want := "*3\r\n$1\r\na\r\n$1\r\nb\r\n$1\r\nc\r\n"; got != want {
		t.Fatalf("LRANGE: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.LRange, Key: "l", Start: -2, Stop: -1}, s))
	if want := "*2\r\n$1\r\nb\r\n$1\r\nc\r\n"; got != want {
		t.Fatalf("LRANGE -2 -1: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.LLen, Key: "l"}, s))
	if want := ":3\r\n"; got != want {
		t.Fatalf("LLEN: got %q, want %q", got, want)
	}
}

func TestExecuteLPushAndLPop(t *testing.T) {
	s := store.New()

	Execute(command.Command{Kind: command.LPush, Key: "l", Values: []string{"x", "y", "z"}}, s)

	got := encode(t, Execute(command.Command{Kind: command.LPop, Key: "l", HasCount: true, Count: 2}, s))
	if want := "*2\r\n$1\r\nz\r\n$1\r\ny\r\n"; got != want {
		t.Fatalf("LPOP 2: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.LPop, Key: "l"}, s))
	if want := "$1\r\nx\r\n"; got != want {
		t.Fatalf("LPOP: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.Type, Key: "l"}, s))
	if want := "+none\r\n"; got != want {
		t.Fatalf("TYPE after list drained: got %q, want %q", got, want)
	}
}

func TestExecuteWrongType(t *testing.T) {
	s := store.New()
	Execute(command.Command{Kind: command.Set, Key: "k", Value: "v"}, s)

	want := "-WRONGTYPE Operation against a key holding the wrong kind of value\r\n"

	cmds := []command.Command{
		{Kind: command.RPush, Key: "k", Values: []string{"x"}},
		{Kind: command.LPush, Key: "k", Values: []string{"x"}},
		{Kind: command.LLen, Key: "k"},
		{Kind: command.LRange, Key: "k", Start: 0, Stop: -1},
		{Kind: command.LPop, Key: "k"},
		{Kind: command.BLPop, Key: "k", TimeoutSeconds: 0.01},
	}
	for _, c := range cmds {
		if got := encode(t, Execute(c, s)); got != want {
			t.Errorf("%v: got %q, want %q", c.Kind, got, want)
		}
	}
}

func TestExecuteBLPopTimeout(t *testing.T) {
	s := store.New()

	got := encode(t, Execute(command.Command{Kind: command.BLPop, Key: "absent", TimeoutSeconds: 0.05}, s))
	if want := "*-1\r\n"; got != want {
		t.Fatalf("BLPOP timeout: got %q, want %q", got, want)
	}
}

func TestExecuteBLPopSuccess(t *testing.T) {
	s := store.New()
	Execute(command.Command{Kind: command.RPush, Key: "q", Values: []string{"hello"}}, s)

	got := encode(t, Execute(command.Command{Kind: command.BLPop, Key: "q", TimeoutSeconds: 0}, s))
	if want := "*2\r\n$1\r\nq\r\n$5\r\nhello\r\n"; got != want {
		t.Fatalf("BLPOP: got %q, want %q", got, want)
	}
}

func TestExecuteDelExistsKeysTTL(t *testing.T) {
	s := store.New()
	Execute(command.Command{Kind: command.Set, Key: "a", Value: "1"}, s)
	Execute(command.Command{Kind: command.Set, Key: "b", Value: "2"}, s)

	got := encode(t, Execute(command.Command{Kind: command.Exists, Keys: []string{"a", "b", "missing"}}, s))
	if want := ":2\r\n"; got != want {
		t.Fatalf("EXISTS: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.Del, Keys: []string{"a", "missing"}}, s))
	if want := ":1\r\n"; got != want {
		t.Fatalf("DEL: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.TTL, Key: "b"}, s))
	if want := ":-1\r\n"; got != want {
		t.Fatalf("TTL no expiry: got %q, want %q", got, want)
	}

	got = encode(t, Execute(command.Command{Kind: command.TTL, Key: "a"}, s))
	if want := ":-2\r\n"; got != want {
		t.Fatalf("TTL on deleted key: got %q, want %q", got, want)
	}
}

func TestExecuteUnknownIsErrorUpstream(t *testing.T) {
	// Unknown commands never reach Execute: command.Parse rejects them
	// first (spec.md §7, category 2). This is asserted in command_test.go;
	// here we only confirm Execute itself never needs an "unknown" case
	// for anything command.Parse can hand it.
	s := store.New()
	for _, k := range []command.Kind{
		command.Ping, command.Echo, command.Set, command.Get,
		command.RPush, command.LPush, command.LRange, command.LLen,
		command.LPop, command.BLPop, command.Type, command.Del,
		command.Exists, command.Keys, command.TTL,
	} {
		got := encode(t, Execute(command.Command{Kind: k, Key: "k", Keys: []string{"k"}, TimeoutSeconds: 0.001}, s))
		if got == "-ERR internal error: unhandled command\r\n" {
			t.Errorf("%v: reached Execute's unhandled-command fallback", k)
		}
	}
}
