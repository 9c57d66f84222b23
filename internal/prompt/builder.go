package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/park285/dong-server/internal/calculation"
	"github.com/park285/dong-server/internal/config"
	"github.com/park285/dong-server/internal/toon"
)

//go:embed templates/*.yml
var embeddedTemplates embed.FS

const defaultTemplateDir = "templates"

var requiredFields = map[string][]string{
	config.PromptModeNarrative:  {"system", "user", "expense_line", "payer_line", "empty_line", "separator"},
	config.PromptModeStructured: {"system", "user"},
}

var persianDigits = strings.NewReplacer(
	"0", "۰", "1", "۱", "2", "۲", "3", "۳", "4", "۴",
	"5", "۵", "6", "۶", "7", "۷", "8", "۸", "9", "۹",
)

// Prompt 는 공급자에 보낼 렌더링 결과다.
type Prompt struct {
	Mode   string
	System string
	User   string
	// Schema 는 structured 모드에서만 채워진다.
	Schema map[string]any
}

// Builder 는 계산 요청을 프롬프트로 렌더링한다. 같은 입력이면 항상 같은 결과를 낸다.
type Builder struct {
	templates map[string]map[string]string
	currency  string
	printer   *message.Printer
}

// NewDefaultBuilder 는 내장 템플릿으로 Builder 를 만든다.
func NewDefaultBuilder(currency string) (*Builder, error) {
	return NewBuilder(embeddedTemplates, defaultTemplateDir, currency)
}

// NewBuilder 는 fsys 의 dir 에서 템플릿을 읽어 Builder 를 만든다.
func NewBuilder(fsys fs.FS, dir string, currency string) (*Builder, error) {
	templates, err := LoadYAMLDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	for mode, fields := range requiredFields {
		mapping, ok := templates[mode]
		if !ok {
			return nil, fmt.Errorf("prompt template not found: %s", mode)
		}
		for _, field := range fields {
			if _, ok := mapping[field]; !ok {
				return nil, fmt.Errorf("prompt field missing: %s.%s", mode, field)
			}
		}
	}
	if strings.TrimSpace(currency) == "" {
		currency = "تومان"
	}
	return &Builder{
		templates: templates,
		currency:  currency,
		printer:   message.NewPrinter(language.Persian),
	}, nil
}

// Build 는 mode 에 맞는 프롬프트를 렌더링한다.
func (b *Builder) Build(mode string, req calculation.Request) (Prompt, error) {
	switch mode {
	case config.PromptModeNarrative:
		return b.narrative(req)
	case config.PromptModeStructured:
		return b.structured(req)
	default:
		return Prompt{}, fmt.Errorf("unknown prompt mode: %q", mode)
	}
}

// FormatAmount 는 금액을 페르시아 숫자와 자릿수 구분 기호로 표기한다.
func (b *Builder) FormatAmount(value int64) string {
	return persianDigits.Replace(b.printer.Sprint(number.Decimal(value)))
}

func (b *Builder) narrative(req calculation.Request) (Prompt, error) {
	tpl := b.templates[config.PromptModeNarrative]
	sep := tpl["separator"]

	expenseLines := make([]string, 0, len(req.Expenses))
	for _, e := range req.Expenses {
		line, err := FormatTemplate(tpl["expense_line"], map[string]string{
			"item":      e.Item,
			"amount":    b.FormatAmount(e.Cost()),
			"currency":  b.currency,
			"consumers": strings.Join(e.Consumers, sep),
		})
		if err != nil {
			return Prompt{}, fmt.Errorf("render expense line: %w", err)
		}
		expenseLines = append(expenseLines, line)
	}

	payerLines := make([]string, 0, len(req.Payers))
	for _, p := range req.Payers {
		line, err := FormatTemplate(tpl["payer_line"], map[string]string{
			"name":     p.Name,
			"amount":   b.FormatAmount(p.Paid()),
			"currency": b.currency,
		})
		if err != nil {
			return Prompt{}, fmt.Errorf("render payer line: %w", err)
		}
		payerLines = append(payerLines, line)
	}

	user, err := FormatTemplate(tpl["user"], map[string]string{
		"expenses":     joinOr(expenseLines, tpl["empty_line"]),
		"payers":       joinOr(payerLines, tpl["empty_line"]),
		"participants": strings.Join(req.Participants, sep),
	})
	if err != nil {
		return Prompt{}, fmt.Errorf("render narrative prompt: %w", err)
	}

	return Prompt{
		Mode:   config.PromptModeNarrative,
		System: strings.TrimSpace(tpl["system"]),
		User:   strings.TrimSpace(user),
	}, nil
}

func (b *Builder) structured(req calculation.Request) (Prompt, error) {
	tpl := b.templates[config.PromptModeStructured]

	expenses := make([][]any, 0, len(req.Expenses))
	for _, e := range req.Expenses {
		expenses = append(expenses, []any{e.Item, e.Cost(), strings.Join(e.Consumers, "|")})
	}
	payers := make([][]any, 0, len(req.Payers))
	for _, p := range req.Payers {
		payers = append(payers, []any{p.Name, p.Paid()})
	}

	doc := toon.New().List("participants", req.Participants)
	if err := doc.Table("expenses", []string{"item", "amount", "consumers"}, expenses); err != nil {
		return Prompt{}, err
	}
	if err := doc.Table("payers", []string{"name", "amount"}, payers); err != nil {
		return Prompt{}, err
	}
	event := doc.
		Value("total_expenses", req.TotalExpenses()).
		Value("total_paid", req.TotalPaid()).
		String()

	user, err := FormatTemplate(tpl["user"], map[string]string{
		"currency": b.currency,
		"event":    EscapeXML(event),
	})
	if err != nil {
		return Prompt{}, fmt.Errorf("render structured prompt: %w", err)
	}

	return Prompt{
		Mode:   config.PromptModeStructured,
		System: strings.TrimSpace(tpl["system"]),
		User:   strings.TrimSpace(user),
		Schema: calculation.ResultSchema(),
	}, nil
}

func joinOr(lines []string, empty string) string {
	if len(lines) == 0 {
		return empty
	}
	return strings.Join(lines, "\n")
}
