package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/srodi/loadreaper/pkg/advisory"
	"github.com/srodi/loadreaper/pkg/session"
	"github.com/srodi/loadreaper/pkg/types"
)

type fakeAdvisor struct {
	text  string
	err   error
	calls int
}

func (f *fakeAdvisor) Advise(context.Context, []string) (string, error) {
	f.calls++
	return f.text, f.err
}

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func sampleOutcomes() []types.TerminationOutcome {
	return []types.TerminationOutcome{
		{Process: types.ProcessInfo{PID: 10, PPID: 1, CPUPercent: 97.5, VSZKiB: 2048, Comm: "stress"}, Outcome: types.Terminated},
		{Process: types.ProcessInfo{PID: 11, PPID: 1, CPUPercent: 40, VSZKiB: 4096, Comm: "sshd"}, Outcome: types.PermissionDenied},
		{Process: types.ProcessInfo{PID: 12, PPID: 10, CPUPercent: 12, VSZKiB: 512, Comm: "<script>"}, Outcome: types.NotFound},
	}
}

func newCompiler(t *testing.T, adv advisory.Advisor, sidecar bool) (*Compiler, string) {
	t.Helper()
	dir := t.TempDir()
	c := NewCompiler(Options{Dir: dir, Threshold: 10, LoadWindow: 15, Sidecar: sidecar},
		advisory.NewClient(adv, time.Second, nil), nil, nil)
	c.now = func() time.Time { return fixedNow }
	return c, dir
}

func TestCompileWritesArtifact(t *testing.T) {
	adv := &fakeAdvisor{text: "stress generates load\n"}
	c, dir := newCompiler(t, adv, true)
	sess := session.New(4242, fixedNow)

	path := c.Compile(context.Background(), sess, types.LoadSample{One: 1, Five: 2, Fifteen: 25}, sampleOutcomes())
	want := filepath.Join(dir, "report-4242-20260304T050607Z.html")
	if path != want {
		t.Fatalf("expected %s, got %s", want, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	html := string(data)
	for _, needle := range []string{"25.00", "stress", "97.5", "PermissionDenied", "NotFound", "<pre>stress generates load</pre>", sess.ID, "&lt;script&gt;"} {
		if !strings.Contains(html, needle) {
			t.Fatalf("report missing %q", needle)
		}
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("process names must be escaped")
	}

	raw, err := os.ReadFile(SidecarPath(path))
	if err != nil {
		t.Fatalf("reading sidecar: %v", err)
	}
	var doc sidecarDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("sidecar is not yaml: %v", err)
	}
	if doc.PID != 4242 || len(doc.Processes) != 3 || doc.Processes[1].Outcome != "PermissionDenied" {
		t.Fatalf("unexpected sidecar %+v", doc)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("expected html and yaml only, got %d entries", len(entries))
	}
}

func TestCompileSkipsFailedSession(t *testing.T) {
	adv := &fakeAdvisor{text: "x"}
	c, dir := newCompiler(t, adv, false)
	sess := session.New(1, fixedNow)
	sess.Fail(errors.New("census unavailable"))

	if path := c.Compile(context.Background(), sess, types.LoadSample{}, sampleOutcomes()); path != "" {
		t.Fatalf("expected no artifact, got %s", path)
	}
	if adv.calls != 0 {
		t.Fatalf("advisor should not be called")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected empty dir, got %d entries", len(entries))
	}
}

func TestCompileAbortsWhenAdvisoryFails(t *testing.T) {
	adv := &fakeAdvisor{err: errors.New("spawn failed")}
	c, dir := newCompiler(t, adv, true)
	sess := session.New(1, fixedNow)

	if path := c.Compile(context.Background(), sess, types.LoadSample{}, sampleOutcomes()); path != "" {
		t.Fatalf("expected no artifact, got %s", path)
	}
	if !sess.Failed() || !errors.Is(sess.Err(), advisory.ErrAdvisorUnavailable) {
		t.Fatalf("expected advisory failure on session, got %v", sess.Err())
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("no partial artifact may be written, got %d entries", len(entries))
	}
}

func TestCompileWithoutTerminationsSkipsAdvisor(t *testing.T) {
	adv := &fakeAdvisor{text: "unused"}
	c, _ := newCompiler(t, adv, false)
	sess := session.New(1, fixedNow)
	denied := sampleOutcomes()[1:2]

	if path := c.Compile(context.Background(), sess, types.LoadSample{Fifteen: 11}, denied); path == "" {
		t.Fatalf("expected artifact even without terminations")
	}
	if adv.calls != 0 {
		t.Fatalf("advisor should not be called without terminated names")
	}
}

type failingRenderer struct{}

func (failingRenderer) Render(io.Writer, Report) error { return errors.New("disk full") }

func TestCompileRenderFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	c := NewCompiler(Options{Dir: dir}, advisory.NewClient(&fakeAdvisor{}, 0, nil), failingRenderer{}, nil)
	sess := session.New(1, fixedNow)

	if path := c.Compile(context.Background(), sess, types.LoadSample{}, nil); path != "" {
		t.Fatalf("expected no artifact, got %s", path)
	}
	if !sess.Failed() {
		t.Fatalf("write failure should fail the session")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("temp file leaked: %d entries", len(entries))
	}
}

func TestFileNameIsNamespacedByTime(t *testing.T) {
	a := FileName("report-", 7, fixedNow)
	b := FileName("report-", 7, fixedNow.Add(30*time.Minute))
	if a == b {
		t.Fatalf("cycles must not share a file name: %s", a)
	}
	if !strings.HasPrefix(a, "report-7-") || !strings.HasSuffix(a, ".html") {
		t.Fatalf("unexpected name %s", a)
	}
	if SidecarPath("/w/"+a) != "/w/report-7-20260304T050607Z.yaml" {
		t.Fatalf("unexpected sidecar path %s", SidecarPath("/w/"+a))
	}
}

func TestRowsKeepOrder(t *testing.T) {
	rows := Rows(sampleOutcomes())
	if len(rows) != 3 || rows[0].Comm != "stress" || rows[0].CPUPercent != "97.5" || rows[2].Outcome != "NotFound" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestHTMLRendererEmptyCommentary(t *testing.T) {
	var buf bytes.Buffer
	if err := (HTMLRenderer{}).Render(&buf, Report{PID: 1, Generated: fixedNow}); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "<pre></pre>") {
		t.Fatalf("expected empty commentary block")
	}
}
