package browser

import (
	"testing"
	"time"
)

func TestBlocked(t *testing.T) {
	block := map[string]bool{"images": true, "fonts": true}
	cases := []struct {
		typ  string
		want bool
	}{
		{"Image", true},
		{"Font", true},
		{"Stylesheet", false},
		{"Document", false},
		{"Script", false},
	}
	for _, c := range cases {
		if got := blocked(block, c.typ); got != c.want {
			t.Errorf("%s: got %v, want %v", c.typ, got, c.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.defaults()
	if !*c.Headless || !*c.Stealth {
		t.Error("headless and stealth should default to true")
	}
	if c.NavigateTimeout != 30*time.Second {
		t.Errorf("timeout: got %v", c.NavigateTimeout)
	}
	off := false
	c2 := Config{Stealth: &off}
	c2.defaults()
	if *c2.Stealth {
		t.Error("explicit false overwritten")
	}
}

func TestClosedManager(t *testing.T) {
	m := NewManager(Config{})
	m.Close()
	if err := m.Start(t.Context()); err != ErrClosed {
		t.Fatalf("got %v, want ErrClosed", err)
	}
	if m.Browser() != nil {
		t.Error("browser after close")
	}
}
