package guard

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"
)

//go:embed rulepacks/*.yml
var builtinRules embed.FS

const builtinRulesDir = "rulepacks"

// ruleFile 는 규칙 YAML 파일 하나의 형식이다.
type ruleFile struct {
	Version   int       `yaml:"version"`
	Threshold float64   `yaml:"threshold"`
	Rules     []ruleDef `yaml:"rules"`
}

type ruleDef struct {
	ID      string   `yaml:"id"`
	Type    string   `yaml:"type"`
	Weight  float64  `yaml:"weight"`
	Pattern string   `yaml:"pattern"`
	Phrases []string `yaml:"phrases"`
}

type patternRule struct {
	id     string
	re     *regexp.Regexp
	weight float64
}

type phraseEntry struct {
	rule   string
	weight float64
}

// ruleSet 은 모든 규칙 파일을 합친 결과다. 문구 규칙은 Aho-Corasick 매처 하나로 검사한다.
type ruleSet struct {
	threshold float64
	patterns  []patternRule
	phrases   []phraseEntry
	matcher   *ahocorasick.Matcher
}

// ruleBuilder 는 파일을 차례로 받아 ruleSet 을 만든다.
type ruleBuilder struct {
	threshold float64
	patterns  []patternRule
	phrases   []string
	entries   []phraseEntry
	seen      map[string]int
}

func newRuleBuilder() *ruleBuilder {
	return &ruleBuilder{seen: map[string]int{}}
}

// add 는 파일 하나를 반영한다. 오류가 나면 그 파일의 규칙은 하나도 반영하지 않는다.
func (b *ruleBuilder) add(file ruleFile) error {
	var (
		patterns []patternRule
		phrases  []string
		entries  []phraseEntry
	)
	for i, def := range file.Rules {
		if strings.TrimSpace(def.ID) == "" {
			return fmt.Errorf("rule %d: missing id", i)
		}
		switch strings.ToLower(strings.TrimSpace(def.Type)) {
		case "regex":
			if def.Pattern == "" {
				return fmt.Errorf("rule %s: empty pattern", def.ID)
			}
			re, err := regexp.Compile("(?i)" + def.Pattern)
			if err != nil {
				return fmt.Errorf("rule %s: %w", def.ID, err)
			}
			patterns = append(patterns, patternRule{id: def.ID, re: re, weight: def.Weight})
		case "phrases":
			if len(def.Phrases) == 0 {
				return fmt.Errorf("rule %s: no phrases", def.ID)
			}
			for _, phrase := range def.Phrases {
				// 입력과 같은 정규화를 거쳐야 ی/ي 변형이 함께 매칭된다.
				key := strings.ToLower(normalizeText(phrase))
				if key == "" {
					continue
				}
				phrases = append(phrases, key)
				entries = append(entries, phraseEntry{rule: def.ID, weight: def.Weight})
			}
		default:
			return fmt.Errorf("rule %s: unknown type %q", def.ID, def.Type)
		}
	}

	b.patterns = append(b.patterns, patterns...)
	for i, key := range phrases {
		if idx, dup := b.seen[key]; dup {
			b.entries[idx] = entries[i]
			continue
		}
		b.seen[key] = len(b.phrases)
		b.phrases = append(b.phrases, key)
		b.entries = append(b.entries, entries[i])
	}
	threshold := file.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	b.threshold = max(b.threshold, threshold)
	return nil
}

func (b *ruleBuilder) build() *ruleSet {
	set := &ruleSet{
		threshold: b.threshold,
		patterns:  b.patterns,
		phrases:   b.entries,
	}
	if len(b.phrases) > 0 {
		dict := make([][]byte, len(b.phrases))
		for i, phrase := range b.phrases {
			dict[i] = []byte(phrase)
		}
		set.matcher = ahocorasick.NewMatcher(dict)
	}
	return set
}

func decodeRuleFile(data []byte) (ruleFile, error) {
	var file ruleFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return ruleFile{}, err
	}
	if file.Version > 1 {
		return ruleFile{}, fmt.Errorf("unsupported rule file version %d", file.Version)
	}
	return file, nil
}

// loadRuleSet 은 dir 바로 아래 *.yml, *.yaml 파일을 이름순으로 합친다.
// 깨진 파일은 경고만 남기고 건너뛰지만, 쓸 수 있는 파일이 하나도 없으면 오류다.
func loadRuleSet(fsys fs.FS, dir string, logger *slog.Logger) (*ruleSet, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read rule dir %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if ext := path.Ext(entry.Name()); !entry.IsDir() && (ext == ".yml" || ext == ".yaml") {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)

	builder := newRuleBuilder()
	loaded := 0
	for _, name := range names {
		file := path.Join(dir, name)
		data, err := fs.ReadFile(fsys, file)
		if err == nil {
			var parsed ruleFile
			if parsed, err = decodeRuleFile(data); err == nil {
				err = builder.add(parsed)
			}
		}
		if err != nil {
			logger.Warn("guard_rule_file_skipped", "file", file, "err", err)
			continue
		}
		loaded++
	}
	if loaded == 0 {
		return nil, errors.New("guard: no usable rule files in " + dir)
	}
	return builder.build(), nil
}

// score 는 정규화된 입력에 걸린 규칙을 모은다. 같은 규칙의 문구가 여러 개 걸려도 한 번만 센다.
func (s *ruleSet) score(text string) (float64, []Hit) {
	var (
		total float64
		hits  []Hit
	)
	for _, p := range s.patterns {
		if p.re.MatchString(text) {
			total += p.weight
			hits = append(hits, Hit{Rule: p.id, Weight: p.weight})
		}
	}
	if s.matcher == nil {
		return total, hits
	}

	best := map[string]float64{}
	var order []string
	for _, idx := range s.matcher.MatchThreadSafe([]byte(strings.ToLower(text))) {
		if idx < 0 || idx >= len(s.phrases) {
			continue
		}
		entry := s.phrases[idx]
		prev, ok := best[entry.rule]
		if !ok {
			order = append(order, entry.rule)
		}
		best[entry.rule] = max(prev, entry.weight)
	}
	for _, rule := range order {
		if w := best[rule]; w > 0 {
			total += w
			hits = append(hits, Hit{Rule: rule, Weight: w})
		}
	}
	return total, hits
}
