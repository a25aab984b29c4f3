package processor

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"resume-search/internal/storage/models"
	"resume-search/internal/types"

	"gorm.io/datatypes"
)

// RankedResume 打分后的候选
type RankedResume struct {
	Resume *models.Resume
	Score  int
}

// ScoreCandidate 各非空类别与候选对应字段的逐项交集大小之和，再加上 GPA 项。
// 词项按JSON类型比较，字符串 "3" 与数字 3 不相等
func ScoreCandidate(query types.QueryFields, resume *models.Resume) int {
	if resume == nil {
		return 0
	}

	score := 0
	score += categoryScore(query.Skills, resume.Skills, skillSteps)
	score += categoryScore(query.WorkExperience, resume.WorkExperience, entrySteps)
	score += categoryScore(query.Education, resume.Education, entrySteps)
	score += categoryScore(query.Certifications, resume.Certifications, entrySteps)
	score += categoryScore(query.Projects, resume.Projects, entrySteps)

	if resume.GPA != nil && gpaSatisfied(query.GPA, *resume.GPA) {
		score++
	}
	return score
}

// RankCandidates 按分数降序稳定排序，同分保持召回顺序
func RankCandidates(query types.QueryFields, resumes []*models.Resume) []RankedResume {
	ranked := make([]RankedResume, 0, len(resumes))
	for _, r := range resumes {
		ranked = append(ranked, RankedResume{Resume: r, Score: ScoreCandidate(query, r)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func categoryScore(queryTerms []any, field datatypes.JSON, steps func(any) [][]any) int {
	if len(queryTerms) == 0 || len(field) == 0 {
		return 0
	}

	wanted := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		wanted[termKey(t)] = struct{}{}
	}

	var value any
	if err := json.Unmarshal(field, &value); err != nil || value == nil {
		return 0
	}

	total := 0
	for _, step := range steps(value) {
		seen := make(map[string]struct{}, len(step))
		for _, t := range step {
			k := termKey(t)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if _, ok := wanted[k]; ok {
				total++
			}
		}
	}
	return total
}

// skillSteps 技能对象每个键一步，词项为键本身加上值的词项；技能数组每个元素一步
func skillSteps(value any) [][]any {
	switch v := value.(type) {
	case map[string]any:
		steps := make([][]any, 0, len(v))
		for _, key := range sortedKeys(v) {
			steps = append(steps, append([]any{key}, valueTerms(v[key])...))
		}
		return steps
	case []any:
		steps := make([][]any, 0, len(v))
		for _, item := range v {
			steps = append(steps, valueTerms(item))
		}
		return steps
	default:
		return [][]any{valueTerms(v)}
	}
}

// entrySteps 对象条目的每个字段值一步，标量条目单独一步
func entrySteps(value any) [][]any {
	var entries []any
	switch v := value.(type) {
	case []any:
		entries = v
	default:
		entries = []any{v}
	}

	var steps [][]any
	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			steps = append(steps, valueTerms(entry))
			continue
		}
		for _, key := range sortedKeys(obj) {
			steps = append(steps, valueTerms(obj[key]))
		}
	}
	return steps
}

// valueTerms 列表取其元素，其他值视为单元素集合
func valueTerms(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// termKey 用JSON编码作为比较键，保留类型信息
func termKey(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// gpaSatisfied 双方都能解析为数字时，按截断取整比较
func gpaSatisfied(queryGPA, candidateGPA string) bool {
	q, ok := truncatedGPA(queryGPA)
	if !ok {
		return false
	}
	c, ok := truncatedGPA(candidateGPA)
	if !ok {
		return false
	}
	return q >= c
}

func truncatedGPA(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}
