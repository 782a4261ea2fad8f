package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckURL(t *testing.T) {
	tests := []struct {
		url     string
		block   bool
		wantErr error
	}{
		{"https://93.184.216.34/post", true, nil},
		{"http://127.0.0.1/admin", false, nil},
		{"ftp://example.com/data", false, ErrUnsafeScheme},
		{"javascript:alert(1)", true, ErrUnsafeScheme},
		{"http://127.0.0.1/admin", true, ErrPrivateHost},
		{"http://10.0.0.1/internal", true, ErrPrivateHost},
		{"http://192.168.1.1/api", true, ErrPrivateHost},
		{"http://[::1]/api", true, ErrPrivateHost},
		{"http://172.16.0.1/secret", true, ErrPrivateHost},
		{"http://169.254.169.254/latest/meta-data", true, ErrPrivateHost},
		{"http://[::ffff:127.0.0.1]/", true, ErrPrivateHost},
	}
	for _, tt := range tests {
		err := CheckURL(tt.url, tt.block)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("CheckURL(%q, %v): got %v, want %v", tt.url, tt.block, err, tt.wantErr)
		}
	}
	if err := CheckURL("http:///nohost", false); err == nil {
		t.Error("CheckURL without host: got nil error")
	}
}

func TestFetch_PrivateHostsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<p>hi</p>"))
	}))
	defer srv.Close()

	f := New(WithPrivateHostsBlocked())
	if _, err := f.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrPrivateHost) {
		t.Errorf("got %v, want ErrPrivateHost", err)
	}
	if err := f.Check(srv.URL); !errors.Is(err, ErrPrivateHost) {
		t.Errorf("Check: got %v, want ErrPrivateHost", err)
	}
	if _, err := New().Fetch(context.Background(), srv.URL); err != nil {
		t.Errorf("default fetcher: got %v, want loopback allowed", err)
	}
}
