package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"umaai/internal/types"
)

// =============================================================================
// HORSE TABLE
// =============================================================================

// DetailHorses is the number of leading horses repeated in the detail block.
const DetailHorses = 5

var horseColumns = []string{
	"順位", "馬番", "馬名", "最終スコア", "マイニング指数", "バトルマイニング",
	"前走指数", "補正タイム偏差", "類似度係数", "安定度係数",
	"勝率順位", "連対率順位", "複勝率順位",
	"騎手", "騎手勝率", "調教師", "調教師勝率", "間隔(週)", "前走着順",
}

// FormatHorseTable renders one Markdown row per horse in input order. The
// 順位 column is the input position, which upstream sorts by final score.
// Zero horses yield the header alone.
func FormatHorseTable(horses []types.HorseEntry) string {
	var sb strings.Builder
	writeRow(&sb, horseColumns)
	writeSeparator(&sb, len(horseColumns))

	for i := range horses {
		h := &horses[i]
		p := h.Prediction()
		writeRow(&sb, []string{
			fmt.Sprintf("%d", i+1),
			h.HorseNumber.Fixed(0),
			text(h.HorseName),
			h.Indices.FinalScore.Fixed(2),
			h.Indices.MiningIndex.Fixed(1),
			h.BattleMining.Fixed(1),
			h.ZIIndex.Fixed(1),
			h.Indices.CorrectedTimeDeviation.Fixed(1),
			h.Indices.SimilarityCoefficient.Fixed(5),
			h.Indices.StabilityCoefficient.Fixed(5),
			p.WinRateRank.Fixed(0),
			p.PlaceRateRank.Fixed(0),
			p.ShowRateRank.Fixed(0),
			text(h.Jockey.Name),
			percent(h.Jockey.ThisYear.WinRate),
			text(h.Trainer.Name),
			percent(h.Trainer.ThisYear.WinRate),
			h.Interval.Fixed(0),
			h.LastFinish(),
		})
	}
	return sb.String()
}

// detailHint is the fixed reading guide attached to each detail line.
type detailHint struct {
	label string
	value func(h *types.HorseEntry) string
	hint  string
}

var detailLines = []detailHint{
	{"最終スコア", func(h *types.HorseEntry) string { return h.Indices.FinalScore.Fixed(2) }, "総合評価。順位付けの基準となる最重要指標"},
	{"マイニング指数", func(h *types.HorseEntry) string { return h.Indices.MiningIndex.Fixed(1) }, "基礎能力の評価。高いほど地力上位"},
	{"バトルマイニング", func(h *types.HorseEntry) string { return h.BattleMining.Fixed(1) }, "対戦比較による評価。メンバー内の相対的な強さ"},
	{"前走指数", func(h *types.HorseEntry) string { return h.ZIIndex.Fixed(1) }, "前走のパフォーマンス。近走の調子の目安"},
	{"補正タイム偏差", func(h *types.HorseEntry) string { return h.Indices.CorrectedTimeDeviation.Fixed(1) }, "走破タイムを条件補正した偏差値。50が平均"},
	{"類似度係数", func(h *types.HorseEntry) string { return h.Indices.SimilarityCoefficient.Fixed(5) }, "1.0以上は今回条件への適性あり、1.0未満は注意"},
	{"安定度係数", func(h *types.HorseEntry) string { return h.Indices.StabilityCoefficient.Fixed(5) }, "1.0以上は成績が安定、1.0未満は波がある"},
	{"勝率順位", func(h *types.HorseEntry) string { return h.Prediction().WinRateRank.Fixed(0) }, "単勝・馬単・3連単の1着候補の判断に使用"},
	{"連対率順位", func(h *types.HorseEntry) string { return h.Prediction().PlaceRateRank.Fixed(0) }, "馬連・枠連の判断に使用"},
	{"複勝率順位", func(h *types.HorseEntry) string { return h.Prediction().ShowRateRank.Fixed(0) }, "複勝・ワイド・3連複の判断に使用"},
	{"騎手", func(h *types.HorseEntry) string { return jockeyLine(h) }, "今年の勝率で騎乗技術を参考にする"},
	{"調教師", func(h *types.HorseEntry) string { return text(h.Trainer.Name) + " " + percent(h.Trainer.ThisYear.WinRate) }, "厩舎の今年の勝率"},
	{"出走間隔", func(h *types.HorseEntry) string { return weeks(h.Interval) }, "極端に短い・長い間隔は状態面に注意"},
	{"前走着順", func(h *types.HorseEntry) string { return h.LastFinish() }, "直近の結果。指数と合わせて評価する"},
}

// FormatHorseDetails repeats the first DetailHorses horses with one labelled
// line per attribute. The hints are fixed text.
func FormatHorseDetails(horses []types.HorseEntry) string {
	n := len(horses)
	if n > DetailHorses {
		n = DetailHorses
	}

	var sb strings.Builder
	for i := 0; i < n; i++ {
		h := &horses[i]
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "#### %d位: %s番 %s\n", i+1, h.HorseNumber.Fixed(0), text(h.HorseName))
		for _, d := range detailLines {
			fmt.Fprintf(&sb, "- %s: %s （%s）\n", d.label, d.value(h), d.hint)
		}
	}
	return sb.String()
}

func jockeyLine(h *types.HorseEntry) string {
	s := text(h.Jockey.Name)
	if h.Jockey.Weight.Present() {
		s += " (" + h.Jockey.Weight.Literal(1) + "kg)"
	}
	return s + " 勝率" + percent(h.Jockey.ThisYear.WinRate)
}

// =============================================================================
// ODDS TABLES
// =============================================================================

// FormatOdds renders every entry of bundle in bundle order.
func FormatOdds(bundle types.OddsBundle) string {
	var sb strings.Builder
	for i, e := range bundle {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(FormatOddsEntry(e))
	}
	return sb.String()
}

// FormatOddsEntry renders one category. tfw becomes a win table and a place
// table; every other category one combination table. All rows are emitted.
func FormatOddsEntry(e types.OddsTypeEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s\n\n", entryName(e))

	if e.Type == types.OddsTFW {
		sb.WriteString("#### 単勝\n")
		writeHorseOdds(&sb, e.Data.Tansho)
		sb.WriteString("\n#### 複勝\n")
		writeHorseOdds(&sb, e.Data.Fukusho)
		return sb.String()
	}

	writeRow(&sb, []string{"組み合わせ", "オッズ"})
	writeSeparator(&sb, 2)
	for _, c := range e.Data.Combinations {
		writeRow(&sb, []string{text(c.Combination), oddsCell(c.Odds)})
	}
	return sb.String()
}

func writeHorseOdds(sb *strings.Builder, rows []types.HorseOdds) {
	writeRow(sb, []string{"馬番", "馬名", "オッズ"})
	writeSeparator(sb, 3)
	for _, r := range rows {
		writeRow(sb, []string{r.HorseNum.Fixed(0), text(r.HorseName), oddsCell(r.Odds)})
	}
}

var defaultEntryNames = map[types.OddsType]string{
	types.OddsTFW:        "単勝・複勝",
	types.OddsWakuren:    "枠連",
	types.OddsUmaren:     "馬連",
	types.OddsWide:       "ワイド",
	types.OddsUmatan:     "馬単",
	types.OddsSanrenpuku: "3連複",
	types.OddsSanrentan:  "3連単",
}

func entryName(e types.OddsTypeEntry) string {
	if e.Name != "" {
		return e.Name
	}
	if n, ok := defaultEntryNames[e.Type]; ok {
		return n
	}
	return string(e.Type)
}

func oddsCell(o types.OddsValue) string {
	if !o.Present() {
		return types.Placeholder
	}
	return o.String()
}

// =============================================================================
// PARSING RENDERED ODDS
// =============================================================================

// rangeSep separates the ends of a rendered odds range.
const rangeSep = " - "

// ParseOddsCell parses a cell produced by FormatOddsEntry: a scalar such as
// "2.5" or a range such as "3.1 - 4.0".
func ParseOddsCell(cell string) (types.OddsValue, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == types.Placeholder {
		return types.OddsValue{}, fmt.Errorf("no odds in cell %q", cell)
	}

	if lo, hi, ok := strings.Cut(cell, rangeSep); ok {
		minN, err := parseNum(lo)
		if err != nil {
			return types.OddsValue{}, err
		}
		maxN, err := parseNum(hi)
		if err != nil {
			return types.OddsValue{}, err
		}
		return types.OddsValue{Min: minN, Max: maxN, IsRange: true}, nil
	}

	n, err := parseNum(cell)
	if err != nil {
		return types.OddsValue{}, err
	}
	return types.OddsValue{Scalar: n}, nil
}

// ParseCombinationTable reads the (組み合わせ, オッズ) rows back out of a
// rendered combination table. Rows whose odds cell is the placeholder are
// returned with empty odds, and non-numeric cells (e.g. 取消) as text.
func ParseCombinationTable(rendered string) []types.Combination {
	out := []types.Combination{}
	for _, line := range strings.Split(rendered, "\n") {
		cells, ok := splitRow(line)
		if !ok || len(cells) != 2 || cells[0] == "組み合わせ" || isSeparator(cells) {
			continue
		}
		c := types.Combination{Combination: unescape(cells[0])}
		if cells[1] != types.Placeholder {
			v, err := ParseOddsCell(cells[1])
			if err != nil {
				v = types.OddsValue{Scalar: types.Num{Text: unescape(cells[1])}}
			}
			c.Odds = v
		}
		out = append(out, c)
	}
	return out
}

func parseNum(s string) (types.Num, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return types.Num{}, fmt.Errorf("invalid odds %q: %w", s, err)
	}
	return types.Num{Value: v, Text: s, Valid: true}, nil
}

// =============================================================================
// MARKDOWN HELPERS
// =============================================================================

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")

func text(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.Placeholder
	}
	return cellEscaper.Replace(s)
}

func unescape(s string) string {
	return strings.ReplaceAll(s, `\|`, "|")
}

func percent(n types.Num) string {
	if !n.Valid {
		return n.Fixed(1)
	}
	return n.Fixed(1) + "%"
}

func weeks(n types.Num) string {
	if !n.Valid {
		return n.Fixed(0)
	}
	return n.Fixed(0) + "週"
}

func writeRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, c := range cells {
		sb.WriteString(" ")
		sb.WriteString(c)
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}

func writeSeparator(sb *strings.Builder, n int) {
	sb.WriteString("|")
	for i := 0; i < n; i++ {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")
}

// splitRow splits "| a | b |" into its trimmed cells, honouring \| escapes.
func splitRow(line string) ([]string, bool) {
	line = strings.TrimSpace(line)
	if len(line) < 2 || line[0] != '|' || line[len(line)-1] != '|' {
		return nil, false
	}
	body := line[1 : len(line)-1]

	var cells []string
	var cur strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) && body[i+1] == '|' {
			cur.WriteString(`\|`)
			i++
			continue
		}
		if body[i] == '|' {
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(body[i])
	}
	cells = append(cells, strings.TrimSpace(cur.String()))
	return cells, true
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}
