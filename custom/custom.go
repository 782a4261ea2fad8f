// Package custom applies a site's custom stylesheet and hands its custom
// script to the background for execution in the page's main world.
package custom

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/swissutil/dom"
	"github.com/hazyhaar/swissutil/idgen"
	"github.com/hazyhaar/swissutil/message"
	"github.com/hazyhaar/swissutil/prefs"
)

// StyleID is the id of the custom stylesheet element.
const StyleID = "su-custom-css"

// JSStatus is the state of the last custom script job.
type JSStatus string

const (
	StatusIdle    JSStatus = "idle"
	StatusPending JSStatus = "pending"
	StatusSuccess JSStatus = "success"
	StatusError   JSStatus = "error"
)

// Status messages shown next to the script editor.
const (
	MsgPending = "Applying JS..."
	MsgSuccess = "JS applied"
	MsgBlocked = "JS blocked by CSP"
)

// Config wires an Injector.
type Config struct {
	Runtime *message.Runtime
	Sender  message.Sender
	// Store receives the job marker; nil skips it.
	Store prefs.Store
	// NewJobID defaults to idgen.Job over the page scheduler clock.
	NewJobID idgen.Generator
	Logger   *slog.Logger
	// OnChange runs after any status change.
	OnChange func()
}

// Injector owns the custom utility's state on one page.
type Injector struct {
	doc *dom.Document
	cfg Config

	state       prefs.CustomState
	lastApplied string
	pendingJob  string
	status      JSStatus
	message     string
}

// New creates an idle Injector.
func New(doc *dom.Document, cfg Config) *Injector {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewJobID == nil {
		cfg.NewJobID = idgen.Job(doc.Scheduler().Now)
	}
	return &Injector{doc: doc, cfg: cfg, status: StatusIdle}
}

// State returns the last applied state.
func (in *Injector) State() prefs.CustomState { return in.state }

// Enabled reports whether the custom utility is applied.
func (in *Injector) Enabled() bool { return in.state.Enabled }

// JSStatus returns the script status and its message.
func (in *Injector) JSStatus() (JSStatus, string) { return in.status, in.message }

// PendingJob returns the id of the last requested job.
func (in *Injector) PendingJob() string { return in.pendingJob }

// Apply makes the page reflect st. A script is only sent when it differs
// from the last one sent, so re-applying the same state never runs it
// twice.
func (in *Injector) Apply(st prefs.CustomState) {
	in.state = st
	if !st.Enabled {
		in.removeStyle()
		in.status, in.message = StatusIdle, ""
		in.changed()
		return
	}

	if strings.TrimSpace(st.CSS) != "" {
		in.upsertStyle(st.CSS)
	} else {
		in.removeStyle()
	}

	code := strings.TrimSpace(st.JS)
	if code != "" && code != in.lastApplied {
		in.lastApplied = code
		in.status, in.message = StatusPending, MsgPending
		in.request(code)
	}
	in.changed()
}

func (in *Injector) request(code string) {
	job := in.cfg.NewJobID()
	in.pendingJob = job
	log := in.cfg.Logger.With("host", in.doc.Hostname(), "job", job)
	ctx := context.Background()

	rt := in.cfg.Runtime
	if rt == nil {
		log.Debug("custom: no runtime, script not sent")
		return
	}
	if in.cfg.Store != nil && rt.Valid() {
		if err := in.cfg.Store.Set(ctx, map[string]any{prefs.KeyCustomJob: job}); err != nil {
			log.Debug("custom: job marker not stored", "error", err)
		}
	}
	if _, err := rt.Send(ctx, in.cfg.Sender, message.ApplyCustomJS{Code: code, JobID: job}); err != nil {
		log.Debug("custom: injection request failed", "error", err)
		return
	}
	log.Info("custom: injection requested", "bytes", len(code))
}

// HandleResult consumes a page broadcast. Anything that is not a result
// for the pending job is ignored.
func (in *Injector) HandleResult(m message.Message) {
	res, ok := m.(message.CustomJSResult)
	if !ok || res.Source != message.Source || res.JobID == "" {
		return
	}
	if res.JobID != in.pendingJob {
		return
	}
	if res.OK {
		in.status, in.message = StatusSuccess, MsgSuccess
	} else {
		in.status, in.message = StatusError, MsgBlocked
	}
	in.cfg.Logger.Debug("custom: script result", "job", res.JobID, "ok", res.OK)
	in.changed()
}

func (in *Injector) changed() {
	if in.cfg.OnChange != nil {
		in.cfg.OnChange()
	}
}

func (in *Injector) upsertStyle(css string) {
	el := in.doc.GetElementByID(StyleID)
	if el == nil {
		el = in.doc.CreateElement("style")
		in.doc.SetAttr(el, "id", StyleID)
		in.doc.AppendChild(in.doc.DocumentElement(), el)
	}
	if dom.TextContent(el) != css {
		in.doc.SetText(el, css)
	}
}

func (in *Injector) removeStyle() {
	if el := in.doc.GetElementByID(StyleID); el != nil {
		in.doc.Remove(el)
	}
}

// Style returns the custom stylesheet element, or nil.
func (in *Injector) Style() *html.Node { return in.doc.GetElementByID(StyleID) }
