// Package share extracts the headed sections of an analysis text and builds
// the message posted to chat.
package share

import (
	"sort"
	"strings"
	"unicode/utf8"

	"umaai/internal/types"
)

// Section titles, in the order the analysis document asks for them.
const (
	TitleSummary        = "📊 レース総評"
	TitleTargets        = "🎯 狙い目分析"
	TitleMarks          = "🐴 馬印"
	TitleAllHorses      = "🐴 全馬総評"
	TitleRecommendation = "🎯 推奨馬券"
	TitleAllocation     = "💰 資金配分"
	TitleDataAnalysis   = "🔍 データ分析詳細"
	TitleCautions       = "⚠️ 注意事項"
)

// Footer closes every share message.
const Footer = "競馬AI予測ツール - UmaAi"

// marker is matched inside a heading line; title is the canonical name.
type marker struct {
	match string
	title string
}

var markers = []marker{
	{"レース総評", TitleSummary},
	{"📊 総評", TitleSummary},
	{"狙い目分析", TitleTargets},
	{"馬印", TitleMarks},
	{"全馬総評", TitleAllHorses},
	{"推奨馬券", TitleRecommendation},
	{"資金配分", TitleAllocation},
	{"データ分析詳細", TitleDataAnalysis},
	{"注意事項", TitleCautions},
}

// shareTitles are the sections copied into a share message.
var shareTitles = []string{TitleSummary, TitleTargets, TitleMarks, TitleAllHorses, TitleDataAnalysis}

type heading struct {
	line  int
	title string
}

// ExtractSections splits text at the known headings. Each title appears at
// most once (first heading wins); text before the first heading is dropped.
func ExtractSections(text string) []types.Section {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	seen := make(map[string]bool)
	var heads []heading
	for i, line := range lines {
		title, ok := headingTitle(line)
		if !ok || seen[title] {
			continue
		}
		seen[title] = true
		heads = append(heads, heading{line: i, title: title})
	}
	sort.SliceStable(heads, func(a, b int) bool { return heads[a].line < heads[b].line })

	sections := make([]types.Section, 0, len(heads))
	for i, h := range heads {
		end := len(lines)
		if i+1 < len(heads) {
			end = heads[i+1].line
		}
		body := strings.TrimSpace(strings.Join(lines[h.line+1:end], "\n"))
		body = strings.TrimSpace(strings.TrimSuffix(body, "---"))
		sections = append(sections, types.Section{Title: h.title, Body: body})
	}
	return sections
}

// headingTitle reports whether line is a short heading naming one of the
// markers. Both "### 🐴 馬印" and "**🐴 馬印**" count.
func headingTitle(line string) (string, bool) {
	norm := strings.Trim(strings.TrimSpace(line), "#*:： ")
	if norm == "" {
		return "", false
	}
	for _, m := range markers {
		if !strings.Contains(norm, m.match) {
			continue
		}
		if utf8.RuneCountInString(norm) > utf8.RuneCountInString(m.match)+8 {
			continue
		}
		return m.title, true
	}
	return "", false
}

// Find returns the body of title.
func Find(sections []types.Section, title string) (string, bool) {
	for _, s := range sections {
		if s.Title == title {
			return s.Body, true
		}
	}
	return "", false
}

// ExtractRecommendation returns the recommended tickets together with the
// allocation section. When the text has no recommendation heading the whole
// text is returned.
func ExtractRecommendation(text string) string {
	sections := ExtractSections(text)
	rec, ok := Find(sections, TitleRecommendation)
	if !ok {
		return strings.TrimSpace(text)
	}
	out := rec
	if alloc, ok := Find(sections, TitleAllocation); ok && alloc != "" {
		out += "\n\n" + TitleAllocation + "\n" + alloc
	}
	return out
}

// Header is the first block of a share message.
func Header(race *types.RaceRecord) string {
	dist := race.Distance.String()
	if race.Distance.Valid && !strings.HasSuffix(dist, "m") {
		dist += "m"
	}
	return "🏇 " + race.RaceNumber + " " + race.RaceName + "\n" +
		dist + " / " + orPlaceholder(race.TrackCondition) + " / " + orPlaceholder(race.StartTime) + "\n"
}

// Text builds the share message for an analysis of race: the race header,
// the shareable sections that are present and the footer.
func Text(race *types.RaceRecord, analysis string) string {
	sections := ExtractSections(analysis)

	var sb strings.Builder
	sb.WriteString(Header(race))
	sb.WriteString("\n")
	for _, title := range shareTitles {
		body, ok := Find(sections, title)
		if !ok || body == "" {
			continue
		}
		sb.WriteString(title)
		sb.WriteString("\n")
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}
	sb.WriteString(Footer)
	return sb.String()
}

func orPlaceholder(s string) string {
	if s == "" {
		return types.Placeholder
	}
	return s
}
