package domain

import (
	"errors"
	"testing"
	"time"
)

func TestFormatChallenge(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 20, 30, 123000000, time.UTC)
	got := FormatChallenge("Acme", "0xabc", ts)
	want := "Welcome to Acme!\n\nSign this message to authenticate your wallet:\n0xabc\n\nTimestamp: 2024-05-01T10:20:30.123Z"
	if got != want {
		t.Errorf("FormatChallenge() =\n%q\nwant\n%q", got, want)
	}
}

func TestParseChallenge(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)
	msg := FormatChallenge(DefaultProductName, "0xabc", ts)

	c, err := ParseChallenge(msg)
	if err != nil {
		t.Fatalf("ParseChallenge() error = %v", err)
	}
	if c.Product != DefaultProductName || c.Address != "0xabc" || !c.Timestamp.Equal(ts) {
		t.Errorf("ParseChallenge() = %+v", c)
	}

	bad := []string{
		"",
		"Welcome to Acme!",
		"Hello Acme!\n\nSign this message to authenticate your wallet:\n0xabc\n\nTimestamp: 2024-05-01T10:20:30.000Z",
		"Welcome to Acme!\n\nSign here:\n0xabc\n\nTimestamp: 2024-05-01T10:20:30.000Z",
		"Welcome to Acme!\n\nSign this message to authenticate your wallet:\n0xabc\n\nTime: 2024-05-01T10:20:30.000Z",
		"Welcome to Acme!\n\nSign this message to authenticate your wallet:\n0xabc\n\nTimestamp: now",
	}
	for _, m := range bad {
		if _, err := ParseChallenge(m); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("ParseChallenge(%q) error = %v, want ErrInvalidArgument", m, err)
		}
	}
}

func TestChallengeBuilder_Build(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 10, 20, 30, 500, time.UTC)
	b := NewChallengeBuilder("", func() time.Time { return fixed })

	if b.Product() != DefaultProductName {
		t.Errorf("Product() = %q", b.Product())
	}

	msg1, ts1 := b.Build("0xabc")
	msg2, ts2 := b.Build("0xabc")

	if !ts1.Equal(fixed.Truncate(time.Millisecond)) {
		t.Errorf("first timestamp = %v", ts1)
	}
	if !ts2.After(ts1) {
		t.Errorf("timestamps should strictly increase: %v then %v", ts1, ts2)
	}
	if msg1 == msg2 {
		t.Error("successive challenges should differ")
	}

	c, err := ParseChallenge(msg2)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Timestamp.Equal(ts2) {
		t.Errorf("embedded timestamp = %v, want %v", c.Timestamp, ts2)
	}
}
