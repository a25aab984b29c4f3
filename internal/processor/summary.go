package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"resume-search/internal/storage/models"

	"gorm.io/datatypes"
)

// FormatResumeText 生成用于向量化的确定性纯文本摘要，缺失的列表按空处理
func FormatResumeText(resume *models.Resume) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Name: %s\n", resume.Name)
	fmt.Fprintf(&sb, "Email: %s\n", resume.Email)
	fmt.Fprintf(&sb, "Phone: %s\n", derefString(resume.PhoneNumber))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Skills: %s\n", strings.Join(skillNames(resume.Skills), ", "))
	sb.WriteString("\n")

	sb.WriteString("Work Experience:\n")
	for _, entry := range jsonEntries(resume.WorkExperience) {
		fmt.Fprintf(&sb, "    %s at %s (%s) - %s\n",
			lookup(entry, "Position", "Role", "Title"),
			lookup(entry, "Company"),
			lookup(entry, "Duration"),
			lookup(entry, "Description"))
	}
	sb.WriteString("\n")

	sb.WriteString("Education:\n")
	for _, entry := range jsonEntries(resume.Education) {
		fmt.Fprintf(&sb, "    %s from %s (%s)\n",
			lookup(entry, "Degree"),
			lookup(entry, "Institution"),
			lookup(entry, "Year"))
	}
	sb.WriteString("\n")

	certs := make([]string, 0)
	for _, entry := range jsonEntries(resume.Certifications) {
		certs = append(certs, entryLabel(entry, "Name", "Title"))
	}
	fmt.Fprintf(&sb, "Certifications: %s\n", strings.Join(certs, ", "))
	sb.WriteString("\n")

	sb.WriteString("Projects:\n")
	for _, entry := range jsonEntries(resume.Projects) {
		fmt.Fprintf(&sb, "    %s: %s\n", lookup(entry, "Name", "Title"), lookup(entry, "Description"))
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "GPA: %s", derefString(resume.GPA))
	return sb.String()
}

// skillNames 技能对象取键（保持原顺序），技能数组取元素
func skillNames(raw datatypes.JSON) []string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '{' {
		return objectKeysInOrder(trimmed)
	}
	var names []string
	for _, entry := range jsonEntries(raw) {
		names = append(names, scalarText(entry))
	}
	return names
}

func objectKeysInOrder(raw []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

// jsonEntries 数组返回元素，单个值视为一个元素，空或 null 返回空
func jsonEntries(raw datatypes.JSON) []any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

// lookup 按候选键名（不区分大小写）取对象字段的文本
func lookup(entry any, keys ...string) string {
	obj, ok := entry.(map[string]any)
	if !ok {
		return ""
	}
	for _, want := range keys {
		if v, ok := obj[want]; ok {
			return scalarText(v)
		}
		for k, v := range obj {
			if strings.EqualFold(k, want) {
				return scalarText(v)
			}
		}
	}
	return ""
}

func entryLabel(entry any, keys ...string) string {
	if _, ok := entry.(map[string]any); ok {
		if label := lookup(entry, keys...); label != "" {
			return label
		}
	}
	return scalarText(entry)
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
