package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
)

// injectJS adds code to the page as a blob-URL script so it runs in the
// page's own context. It resolves true once the script has loaded and
// false when the page refuses it (a CSP without blob: or 'unsafe-inline').
const injectJS = `(code) => new Promise((resolve) => {
  try {
    const blob = new Blob([code], { type: "text/javascript" });
    const url = URL.createObjectURL(blob);
    const script = document.createElement("script");
    script.src = url;
    script.onload = () => { URL.revokeObjectURL(url); script.remove(); resolve(true); };
    script.onerror = () => { URL.revokeObjectURL(url); script.remove(); resolve(false); };
    (document.head || document.documentElement).appendChild(script);
  } catch (e) {
    resolve(false);
  }
})`

// MainWorld executes custom scripts in a tab's main world.
type MainWorld struct {
	page    *rod.Page
	timeout time.Duration
	log     *slog.Logger
}

// NewMainWorld returns the main world of t. A zero timeout means 10s.
func NewMainWorld(t *Tab, timeout time.Duration, log *slog.Logger) *MainWorld {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &MainWorld{page: t.Page, timeout: timeout, log: log}
}

// Execute runs code without blocking the caller; done receives the outcome
// from another goroutine.
func (w *MainWorld) Execute(code string, done func(ok bool)) {
	go func() {
		done(w.Run(context.Background(), code))
	}()
}

// Run injects code and waits for the outcome.
func (w *MainWorld) Run(ctx context.Context, code string) bool {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	res, err := w.page.Context(ctx).Evaluate(rod.Eval(injectJS, code).ByPromise())
	if err != nil {
		w.log.Debug("browser: custom script failed", "error", err)
		return false
	}
	return res.Value.Bool()
}
