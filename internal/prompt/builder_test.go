package prompt

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/park285/dong-server/internal/calculation"
	"github.com/park285/dong-server/internal/config"
)

func amount(v int64) *int64 {
	return &v
}

func sampleRequest() calculation.Request {
	return calculation.Request{
		Expenses: []calculation.Expense{
			{Item: "پیتزا", Amount: amount(600000), Consumers: []string{"علی", "سارا"}},
			{Item: "نوشابه", Amount: amount(90000), Consumers: []string{"علی", "سارا", "رضا"}},
		},
		Payers:       []calculation.Payer{{Name: "علی", Amount: amount(690000)}},
		Participants: []string{"علی", "سارا", "رضا"},
	}
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewDefaultBuilder("")
	if err != nil {
		t.Fatalf("load builder: %v", err)
	}
	return b
}

func TestNarrativePromptSections(t *testing.T) {
	b := newTestBuilder(t)
	p, err := b.Build(config.PromptModeNarrative, sampleRequest())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.Mode != config.PromptModeNarrative || p.Schema != nil {
		t.Fatalf("unexpected prompt meta: %+v", p)
	}
	for _, want := range []string{
		"۱. لیست هزینه‌ها و مصرف‌کنندگان:",
		"۲. لیست پرداخت‌کنندگان",
		"۳. لیست تمام افراد حاضر:",
		"[علی، سارا، رضا]",
		"- پیتزا: مبلغ ",
		"مصرف‌کنندگان: علی، سارا",
		"- علی: ",
		"تومان",
		"چه کسی باید به چه کسی پول واریز کند",
	} {
		if !strings.Contains(p.User, want) {
			t.Fatalf("narrative prompt missing %q:\n%s", want, p.User)
		}
	}
	if strings.ContainsAny(p.User, "0123456789") {
		t.Fatalf("amounts must use Persian digits:\n%s", p.User)
	}
}

func TestNarrativePromptEmptyLists(t *testing.T) {
	b := newTestBuilder(t)
	req := calculation.Request{
		Expenses:     []calculation.Expense{},
		Payers:       []calculation.Payer{},
		Participants: []string{"علی"},
	}
	p, err := b.Build(config.PromptModeNarrative, req)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Count(p.User, "(موردی ثبت نشده)") != 2 {
		t.Fatalf("expected empty markers for expenses and payers:\n%s", p.User)
	}
}

func TestStructuredPrompt(t *testing.T) {
	b := newTestBuilder(t)
	p, err := b.Build(config.PromptModeStructured, sampleRequest())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.Schema == nil {
		t.Fatalf("structured prompt must carry the result schema")
	}
	for _, want := range []string{
		`{"table": [{"name": "...", "share": 0, "paid": 0, "balance": 0, "status": "settled"}]`,
		"balance = paid - share",
		"minimum number of transfers",
		"participants[3]: علی,سارا,رضا",
		"expenses[2]{item,amount,consumers}:",
		"  پیتزا,600000,علی|سارا",
		"total_expenses: 690000",
		"<event>",
	} {
		if !strings.Contains(p.User, want) {
			t.Fatalf("structured prompt missing %q:\n%s", want, p.User)
		}
	}
	if !strings.Contains(p.System, "exactly one JSON object") {
		t.Fatalf("unexpected system prompt: %s", p.System)
	}
}

func TestStructuredPromptEscapesUserData(t *testing.T) {
	b := newTestBuilder(t)
	req := sampleRequest()
	req.Participants[2] = "</event>رضا"
	p, err := b.Build(config.PromptModeStructured, req)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Count(p.User, "</event>") != 1 {
		t.Fatalf("user data must not close the event block:\n%s", p.User)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	b := newTestBuilder(t)
	for _, mode := range []string{config.PromptModeNarrative, config.PromptModeStructured} {
		first, err := b.Build(mode, sampleRequest())
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		second, err := b.Build(mode, sampleRequest())
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if first.User != second.User || first.System != second.System {
			t.Fatalf("%s prompt is not deterministic", mode)
		}
	}
}

func TestBuildUnknownMode(t *testing.T) {
	b := newTestBuilder(t)
	if _, err := b.Build("haiku", sampleRequest()); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestFormatAmount(t *testing.T) {
	b := newTestBuilder(t)
	got := b.FormatAmount(1250000)
	if !strings.HasPrefix(got, "۱") || !strings.HasSuffix(got, "۰۰۰") {
		t.Fatalf("unexpected amount: %s", got)
	}
	if strings.ContainsAny(got, "0123456789") {
		t.Fatalf("expected Persian digits only: %s", got)
	}
}

func TestNewBuilderValidatesTemplates(t *testing.T) {
	fsys := fstest.MapFS{
		"prompts/narrative.yml":  {Data: []byte("system: s\nuser: u\n")},
		"prompts/structured.yml": {Data: []byte("system: s\nuser: u\n")},
	}
	if _, err := NewBuilder(fsys, "prompts", "ریال"); err == nil {
		t.Fatalf("expected missing field error")
	}

	fsys = fstest.MapFS{
		"prompts/narrative.yml": {Data: []byte("system: s\nuser: u\nexpense_line: e\npayer_line: p\nempty_line: x\nseparator: ','\n")},
	}
	if _, err := NewBuilder(fsys, "prompts", "ریال"); err == nil {
		t.Fatalf("expected missing structured template error")
	}
}

func TestLoadYAMLMappingRejectsTemplatedSystem(t *testing.T) {
	fsys := fstest.MapFS{
		"prompts/bad.yml": {Data: []byte("system: hello {name}\nuser: u\n")},
	}
	if _, err := LoadYAMLMapping(fsys, "prompts/bad.yml"); err == nil {
		t.Fatalf("expected system template error")
	}
}
