package prompt

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadYAMLMapping 는 프롬프트 YAML 한 파일을 필드명 -> 템플릿 맵으로 읽는다.
// 비어 있지 않은 system 필드는 자리표시자가 없어야 한다.
func LoadYAMLMapping(fsys fs.FS, filePath string) (map[string]string, error) {
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}

	var fields map[string]string
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parse prompt yaml %s: %w", filePath, err)
	}
	if fields == nil {
		fields = map[string]string{}
	}

	if strings.TrimSpace(fields["system"]) != "" {
		if err := ValidateSystemStatic(filePath, fields["system"]); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

// LoadYAMLDir 는 dir 바로 아래 *.yml, *.yaml 파일을 확장자를 뺀 파일명으로 묶어 읽는다.
func LoadYAMLDir(fsys fs.FS, dir string) (map[string]map[string]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read prompt dir: %w", err)
	}

	templates := make(map[string]map[string]string, len(entries))
	for _, entry := range entries {
		ext := path.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yml" && ext != ".yaml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if _, dup := templates[name]; dup {
			return nil, fmt.Errorf("duplicate prompt template: %s", name)
		}
		fields, err := LoadYAMLMapping(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		templates[name] = fields
	}
	return templates, nil
}
