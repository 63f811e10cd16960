package render

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/ctrldoc/docpipe"
	"github.com/hazyhaar/ctrldoc/masthead"
)

var testNow = time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC)

func testJob(cc *masthead.ControlCopy, text string) *Job {
	meta := masthead.Metadata{
		DocName:         "Cleaning Procedure",
		DocNumber:       "SOP-001",
		RevisionNo:      2,
		Status:          masthead.StatusApproved,
		DepartmentNames: []string{"Production"},
		PreparerName:    "A. Author",
	}
	content := &docpipe.Content{
		Format: docpipe.FormatDocx,
		Title:  "Cleaning Procedure",
		Markup: "<h1>Purpose</h1><p>Keep the line clean.</p>",
		Text:   text,
	}
	return NewJob(meta, cc, content, testNow)
}

func readPDF(t *testing.T, data []byte) *docpipe.PDFInfo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := docpipe.ReadPDF(path)
	if err != nil {
		t.Fatalf("ReadPDF: %v", err)
	}
	return info
}

func longText(paragraphs int) string {
	var sb strings.Builder
	for i := 0; i < paragraphs; i++ {
		sb.WriteString("Paragraph ")
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(": wipe every surface with approved detergent, rinse, and record the result in the log.\n\n")
	}
	return sb.String()
}

func TestBuildPage(t *testing.T) {
	job := testJob(nil, "")
	job.Fields.HeaderInfo = `<p onclick="x()">Scope note</p><script>alert(1)</script>`
	job.Fields.FooterInfo = `<table class="doc-table"><tr><td colspan="2">Annex</td></tr></table>`

	doc, err := buildPage(job)
	if err != nil {
		t.Fatal(err)
	}
	wants := []string{
		`<div class="doc-title">Cleaning Procedure</div>`,
		"text-decoration: underline",
		"table.doc-table td",
		"<h1>Purpose</h1><p>Keep the line clean.</p>",
		"Scope note",
		`<td colspan="2">Annex</td>`,
	}
	for _, w := range wants {
		if !strings.Contains(doc, w) {
			t.Errorf("page missing %q", w)
		}
	}
	for _, bad := range []string{"<script>", "onclick", "alert(1)"} {
		if strings.Contains(doc, bad) {
			t.Errorf("page contains %q", bad)
		}
	}
	if strings.Contains(doc, "doc-content") {
		t.Error("empty content block should be omitted")
	}
}

func TestBuildPage_TitleEscaped(t *testing.T) {
	job := testJob(nil, "")
	job.Fields.Title = "R&D <Lab>"
	doc, err := buildPage(job)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(doc, "R&amp;D &lt;Lab&gt;") {
		t.Fatalf("title not escaped:\n%s", doc)
	}
}

func TestMarkupToText(t *testing.T) {
	conv := newTextConverter()

	got, err := markupToText(conv, "<p>Hello <strong>world</strong></p><script>x()</script>")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello **world**" {
		t.Errorf("markupToText = %q", got)
	}

	got, err = markupToText(conv, "  plain note  ")
	if err != nil || got != "plain note" {
		t.Errorf("plain text = %q, %v", got, err)
	}
}

func TestWrapText(t *testing.T) {
	in := "short line\n\n" + strings.Repeat("word ", 30) + "\n" + strings.Repeat("x", 25) + "\ncafé\tend"
	lines := wrapText(in, 20)

	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line longer than width: %q", l)
		}
		if printable(l) != l {
			t.Errorf("non printable byte kept: %q", l)
		}
	}
	if lines[0] != "short line" || lines[1] != "" {
		t.Errorf("head = %q", lines[:2])
	}
	if !containsLine(lines, strings.Repeat("x", 20)) || !containsLine(lines, "xxxxx") {
		t.Errorf("long word not split: %q", lines)
	}
	if !containsLine(lines, "caf end") {
		t.Errorf("non-ASCII not stripped: %q", lines)
	}
}

func containsLine(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}

func TestCompositor_MultiPageControlCopy(t *testing.T) {
	cc := &masthead.ControlCopy{UserID: "42", UserFullName: "Jane Smith", ControlCopyNumber: "3"}
	job := testJob(cc, longText(120))

	data, err := NewCompositor(ComposerConfig{}).Render(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatal("output is not a PDF")
	}

	info := readPDF(t, data)
	if info.PageCount < 2 {
		t.Fatalf("PageCount = %d, want several pages", info.PageCount)
	}
	total := strconv.Itoa(info.PageCount)
	for i, page := range info.Pages {
		n := strconv.Itoa(i + 1)
		for _, want := range []string{
			"Cleaning Procedure (SOP-001)",
			"COMPANY NAME",
			"Issue No: 01",
			"Revision No: 2",
			"Page " + n + " of " + total,
			"Department: Production",
			"Prepared by: A. Author",
			"Status: APPROVED",
			"CONTROLLED COPY - Issued to: Jane Smith (ID 42) | Copy No: 3 | Date: 09/03/2026",
		} {
			if !strings.Contains(page, want) {
				t.Errorf("page %d missing %q", i+1, want)
			}
		}
	}
}

func TestCompositor_NonASCIIMasthead(t *testing.T) {
	cc := &masthead.ControlCopy{UserID: "42", UserFullName: "José Núñez"}
	job := testJob(cc, longText(120))
	job.Fields.Title = "Limpieza de Área"

	data, err := NewCompositor(ComposerConfig{}).Render(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	info := readPDF(t, data)
	if info.PageCount < 2 {
		t.Fatalf("PageCount = %d, want several pages", info.PageCount)
	}
	// Core fonts draw cp1252 bytes.
	name := "Jos\xe9 N\xfa\xf1ez"
	for i, page := range info.Pages {
		if !strings.Contains(page, "CONTROLLED COPY - Issued to: "+name+" (ID 42)") {
			t.Errorf("page %d lacks the recipient name", i+1)
		}
		if !strings.Contains(page, "Title: Limpieza de \xc1rea") {
			t.Errorf("page %d lacks the accented title", i+1)
		}
		if strings.Contains(page, "Jos Nez") {
			t.Errorf("page %d has a stripped name", i+1)
		}
	}
}

func TestCompositor_SupplementaryBlocks(t *testing.T) {
	job := testJob(nil, "Body text.")
	job.Fields.HeaderInfo = "<p>Header note</p>"
	job.Fields.Content = "<ul><li>Extra item</li></ul>"
	job.Fields.FooterInfo = "Footer note"

	data, err := NewCompositor(ComposerConfig{}).Render(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	text := readPDF(t, data).Text()
	h := strings.Index(text, "Header note")
	b := strings.Index(text, "Body text.")
	e := strings.Index(text, "Extra item")
	f := strings.Index(text, "Footer note")
	if h < 0 || b < 0 || e < 0 || f < 0 || !(h < b && b < e && e < f) {
		t.Fatalf("blocks out of order (%d %d %d %d):\n%s", h, b, e, f, text)
	}
	if strings.Contains(text, "CONTROLLED COPY") {
		t.Error("uncontrolled document carries the banner")
	}
}

func TestCompositor_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCompositor(ComposerConfig{}).Render(ctx, testJob(nil, "x"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStamper(t *testing.T) {
	cc := &masthead.ControlCopy{UserID: "7", UserFullName: "Ana Lopez"}
	job := testJob(cc, longText(60))
	raw, err := NewCompositor(ComposerConfig{}).Render(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}

	stamped, err := NewStamper().Stamp(raw, job.Fields, TagFallback)
	if err != nil {
		t.Fatal(err)
	}
	if readPDF(t, stamped).PageCount != readPDF(t, raw).PageCount {
		t.Fatal("stamping changed the page count")
	}

	props, err := api.Properties(bytes.NewReader(stamped), model.NewDefaultConfiguration())
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"DocNumber":      "SOP-001",
		"Revision":       "2",
		"Engine":         "fallback",
		"ControlledCopy": "Ana Lopez",
	}
	for k, v := range want {
		if props[k] != v {
			t.Errorf("property %s = %q, want %q", k, props[k], v)
		}
	}

	conf := model.NewDefaultConfiguration()
	if ok, err := api.HasWatermarks(bytes.NewReader(raw), conf); err != nil || ok {
		t.Fatalf("unstamped input reports watermarks: %v, %v", ok, err)
	}
	if ok, err := api.HasWatermarks(bytes.NewReader(stamped), conf); err != nil || !ok {
		t.Fatalf("stamped output carries no watermark: %v, %v", ok, err)
	}
}

func TestStamper_NoControlCopyNoWatermark(t *testing.T) {
	job := testJob(nil, "body")
	raw, err := NewCompositor(ComposerConfig{}).Render(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	stamped, err := NewStamper().Stamp(raw, job.Fields, TagFallback)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := api.HasWatermarks(bytes.NewReader(stamped), model.NewDefaultConfiguration()); err != nil || ok {
		t.Fatalf("uncontrolled copy was watermarked: %v, %v", ok, err)
	}
}

func TestStamper_NonASCIIRecipient(t *testing.T) {
	cc := &masthead.ControlCopy{UserID: "9", UserFullName: "José Núñez"}
	job := testJob(cc, "body")
	raw, err := NewCompositor(ComposerConfig{}).Render(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	stamped, err := NewStamper().Stamp(raw, job.Fields, TagFallback)
	if err != nil {
		t.Fatal(err)
	}
	props, err := api.Properties(bytes.NewReader(stamped), model.NewDefaultConfiguration())
	if err != nil {
		t.Fatal(err)
	}
	if props["ControlledCopy"] != "José Núñez" {
		t.Fatalf("ControlledCopy property = %q", props["ControlledCopy"])
	}
}

func TestStamper_InvalidInput(t *testing.T) {
	_, err := NewStamper().Stamp([]byte("not a pdf"), masthead.Fields{}, TagFinal)
	var re *RenderError
	if !errors.As(err, &re) || re.Stage != "stamp" || re.Tag != TagFinal {
		t.Fatalf("expected stamp RenderError, got %v", err)
	}
}

func TestFallbackError(t *testing.T) {
	primary := &RenderError{Tag: TagFinal, Stage: "launch", Err: ErrNoBrowser}
	cause := errors.New("disk full")
	err := error(&FallbackError{Primary: primary, Err: cause})

	if !errors.Is(err, ErrRenderFailed) {
		t.Error("FallbackError should match ErrRenderFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("FallbackError should unwrap to the fallback cause")
	}
	for _, want := range []string{"rendering failed completely", "disk full", "no browser"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("message %q missing %q", err.Error(), want)
		}
	}
}

func TestChrome_LaunchFailure(t *testing.T) {
	c := NewChrome(ChromeConfig{Bin: filepath.Join(t.TempDir(), "no-such-browser")})
	if c.Tag() != TagFinal {
		t.Fatalf("Tag = %q", c.Tag())
	}
	_, err := c.Render(context.Background(), testJob(nil, ""))
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RenderError, got %v", err)
	}
	if re.Stage != "launch" || re.Tag != TagFinal {
		t.Fatalf("unexpected stage/tag: %s/%s", re.Stage, re.Tag)
	}
}

// A browser that starts but never reports its DevTools URL must not
// outlive the failed launch.
func TestChrome_LaunchTimeoutKillsProcess(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("needs /proc")
	}
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "pid")
	bin := filepath.Join(dir, "silent-browser")
	script := "#!/bin/sh\necho $$ > " + pidFile + "\nexec sleep 30\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	c := NewChrome(ChromeConfig{Bin: bin, RenderTimeout: 2 * time.Second})
	_, err := c.Render(context.Background(), testJob(nil, ""))
	var re *RenderError
	if !errors.As(err, &re) || re.Stage != "launch" {
		t.Fatalf("expected launch RenderError, got %v", err)
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("browser never started: %v", err)
	}
	pid := strings.TrimSpace(string(data))
	deadline := time.Now().Add(5 * time.Second)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("browser process %s still running after failed launch", pid)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// processAlive reports whether pid exists and is not a zombie.
func processAlive(pid string) bool {
	stat, err := os.ReadFile("/proc/" + pid + "/stat")
	if err != nil {
		return false
	}
	// Format: pid (comm) state ...
	i := bytes.LastIndexByte(stat, ')')
	return i < 0 || i+2 >= len(stat) || stat[i+2] != 'Z'
}

func TestChrome_Render(t *testing.T) {
	bin := os.Getenv("CHROME_PATH")
	if bin == "" {
		p, ok := launcher.LookPath()
		if !ok {
			t.Skip("no browser available")
		}
		bin = p
	}
	c := NewChrome(ChromeConfig{Bin: bin, NoSandbox: os.Geteuid() == 0})

	cc := &masthead.ControlCopy{UserID: "42", UserFullName: "Jane Smith"}
	data, err := c.Render(context.Background(), testJob(cc, ""))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatal("output is not a PDF")
	}
	if readPDF(t, data).PageCount < 1 {
		t.Fatal("no pages")
	}
}
