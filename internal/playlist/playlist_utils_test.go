package playlist

import (
	"math"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestParse_scenario(t *testing.T) {
	got := Parse("a.wav\npause_500ms\nb.wav")
	want := []Item{AudioRef("a.wav"), Pause(500), AudioRef("b.wav")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse: got %v, want %v", got, want)
	}
}

func TestParse_blank_lines_and_whitespace(t *testing.T) {
	got := Parse("\n  a.wav  \r\n\n\npause_0ms\n\t\nb.wav\n")
	want := []Item{AudioRef("a.wav"), Pause(0), AudioRef("b.wav")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse: got %v, want %v", got, want)
	}
}

func TestParse_pause_like_lines_are_names(t *testing.T) {
	for _, line := range []string{"pause_ms", "pause_10", "pause_-5ms", "pause_1.5ms", "xpause_10ms", "pause_99999999999999999999ms"} {
		got := Parse(line)
		if len(got) != 1 || got[0].IsPause() || got[0].Name != line {
			t.Errorf("Parse(%q): got %v, want AudioRef(%q)", line, got, line)
		}
	}
}

func TestParse_empty(t *testing.T) {
	if got := Parse("\n\n   \n"); len(got) != 0 {
		t.Errorf("expected no items, got %v", got)
	}
}

func TestSerialize_round_trip(t *testing.T) {
	texts := []string{
		"a.wav\npause_500ms\nb.wav",
		"\n\nx.mp3\n\n\npause_1ms\npause_2ms\ny.flac\n",
		"only.ogg",
		"pause_250ms",
	}
	for _, text := range texts {
		first := Parse(text)
		second := Parse(Serialize(first))
		if !reflect.DeepEqual(first, second) {
			t.Errorf("round trip of %q: %v != %v", text, first, second)
		}
	}
}

func TestSerialize_format(t *testing.T) {
	got := Serialize([]Item{AudioRef("a.wav"), Pause(1000), AudioRef("b.wav")})
	if got != "a.wav\npause_1000ms\nb.wav" {
		t.Errorf("Serialize: got %q", got)
	}
}

func TestContentHash_and_ID(t *testing.T) {
	body := Serialize([]Item{AudioRef("a.wav"), Pause(10)})
	h1 := ContentHash(body)
	h2 := ContentHash(body)
	if h1 != h2 || len(h1) != 64 {
		t.Fatalf("hash not deterministic or wrong length: %s %s", h1, h2)
	}
	id := IDFromHash(h1)
	if !regexp.MustCompile(`^[0-9a-f]{8}$`).MatchString(id) {
		t.Errorf("id should be 8 hex chars, got %q", id)
	}
	if !strings.HasPrefix(h1, id) {
		t.Errorf("id %q should prefix hash %q", id, h1)
	}
	if ContentHash(body+"x") == h1 {
		t.Error("different bodies should hash differently")
	}
}

func TestTotalDuration(t *testing.T) {
	cat := fakeCatalog{"a.wav": 200 * time.Millisecond, "b.wav": 300 * time.Millisecond}
	items := []Item{AudioRef("a.wav"), Pause(500), AudioRef("b.wav"), AudioRef("missing")}
	if got := TotalDuration(items, cat); got != time.Second {
		t.Errorf("TotalDuration: got %v, want 1s", got)
	}
}

func TestTotalDuration_saturates(t *testing.T) {
	items := []Item{Pause(MaxPauseMillis), Pause(MaxPauseMillis), AudioRef("a.wav")}
	got := TotalDuration(items, fakeCatalog{"a.wav": time.Second})
	if got != time.Duration(math.MaxInt64) {
		t.Errorf("TotalDuration: got %v, want the largest duration", got)
	}
}

func TestItem_PauseDuration_huge_values(t *testing.T) {
	items := Parse("a.wav\npause_10000000000000ms\na.wav")
	if len(items) != 3 || items[1].Millis != 10000000000000 {
		t.Fatalf("unexpected items %v", items)
	}
	if d := items[1].PauseDuration(); d <= 0 {
		t.Errorf("PauseDuration wrapped to %v", d)
	}
	if !items[1].PauseExceeds(10 * time.Minute) {
		t.Error("PauseExceeds should report a 10000000000000ms pause over a 10m cap")
	}
	if Pause(600000).PauseExceeds(10 * time.Minute) {
		t.Error("a pause equal to the cap is allowed")
	}
	if AudioRef("a.wav").PauseExceeds(0) {
		t.Error("audio items never exceed the pause cap")
	}
}

func TestGeneratedFileName(t *testing.T) {
	cases := []struct {
		total time.Duration
		want  string
	}{
		{12500 * time.Millisecond, "playlist_deadbeef_12.5s_19count.txt"},
		{3 * time.Second, "playlist_deadbeef_3.0s_19count.txt"},
		{1234 * time.Millisecond, "playlist_deadbeef_1.234s_19count.txt"},
		{0, "playlist_deadbeef_0.0s_19count.txt"},
	}
	for _, c := range cases {
		if got := GeneratedFileName("deadbeef", c.total, 19); got != c.want {
			t.Errorf("GeneratedFileName(%v): got %q, want %q", c.total, got, c.want)
		}
	}
}

func TestItem_Label(t *testing.T) {
	if got := Pause(250).Label(); got != "pause_250ms" {
		t.Errorf("pause label: %q", got)
	}
	if got := AudioRef("x.wav").Label(); got != "x.wav" {
		t.Errorf("audio label: %q", got)
	}
	if Pause(250).PauseDuration() != 250*time.Millisecond {
		t.Error("PauseDuration mismatch")
	}
	if AudioRef("x.wav").PauseDuration() != 0 {
		t.Error("audio item should have zero pause duration")
	}
}
