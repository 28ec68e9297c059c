package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umaai/internal/store"
	"umaai/internal/types"
)

const raceJSON = `{"race_number":"東京11R","race_name":"テストS","place":"東京","distance":1600,
 "track_condition":"良","start_time":"15:40",
 "horses":[{"horse_number":5,"horse_name":"サンプル","indices":{"final_score":78.2}},
           {"horse_number":3,"horse_name":"ライバル","indices":{"final_score":70.1}}]}`

const oddsJSON = `[
 {"odds_type":"tfw","odds_type_name":"単勝・複勝","data":{"tansho":[{"horse_num":5,"horse_name":"サンプル","odds":2.5},{"horse_num":3,"horse_name":"ライバル","odds":6.1}]}},
 {"odds_type":"umaren","odds_type_name":"馬連","data":{"combinations":[{"combination":"3-5","odds":8.7},{"combination":"1-5","odds":30.2}]}}
]`

type env struct {
	dir    string
	config string
	cache  string
}

// newEnv writes race data and a config file pointing at it.
func newEnv(t *testing.T, extraConfig string) env {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "UMA_PROVIDER", "UMA_DATA_URL", "UMA_DATA_DIR", "UMA_REDIS_URL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID"} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	e := env{dir: dir, config: filepath.Join(dir, "config.yaml"), cache: filepath.Join(dir, "results.db")}
	write(t, filepath.Join(dir, "data", "racedata", "東京11R.json"), raceJSON)
	write(t, filepath.Join(dir, "data", "odds", "東京11R.json"), oddsJSON)

	cfg := "data:\n  dir: " + filepath.Join(dir, "data") + "\n" +
		"cache:\n  backend: sqlite\n  path: " + e.cache + "\n" +
		"logging:\n  level: error\n" + extraConfig
	write(t, e.config, cfg)
	return e
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// resetFlags clears flag values left over from a previous Execute.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, e env, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPromptCommand(t *testing.T) {
	e := newEnv(t, "")
	out, err := run(t, e, "prompt", "東京11R", "--budget", "5000", "--bet-type", "馬連", "--flag", "5")
	require.NoError(t, err)

	assert.Contains(t, out, "テストS")
	assert.Contains(t, out, "**予算**: 5000円")
	assert.Contains(t, out, "### 馬連")
	assert.Contains(t, out, "- 5番")
}

func TestPromptCommand_UnknownRace(t *testing.T) {
	e := newEnv(t, "")
	_, err := run(t, e, "prompt", "中山1R")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "見つかりません")
}

func TestOddsCommand(t *testing.T) {
	e := newEnv(t, "")
	out, err := run(t, e, "odds", "東京11R", "--type", "馬連", "--sort", "odds_desc")
	require.NoError(t, err)

	assert.Contains(t, out, "馬連")
	assert.Contains(t, out, "サンプル", "win odds are always shown")
	assert.Less(t, strings.Index(out, "1-5"), strings.Index(out, "3-5"), "highest odds first")

	_, err = run(t, e, "odds", "東京11R", "--sort", "random")
	assert.Error(t, err)
}

func TestRacesCommand(t *testing.T) {
	e := newEnv(t, "")
	write(t, filepath.Join(e.dir, "data", "racedata", "東京1R.json"),
		strings.Replace(strings.Replace(raceJSON, "東京11R", "東京1R", 1), "テストS", "2歳未勝利", 1))

	out, err := run(t, e, "races", "東京11R", "中山1R", "東京1R")
	require.NoError(t, err)
	assert.Contains(t, out, "テストS")
	assert.Contains(t, out, "2歳未勝利")
	assert.Less(t, strings.Index(out, "テストS"), strings.Index(out, "2歳未勝利"), "argument order is kept")
	assert.Contains(t, out, "中山1R: データなし")
	assert.NotContains(t, out, "オッズ")

	out, err = run(t, e, "races", "東京11R", "東京1R", "--odds")
	require.NoError(t, err)
	assert.Contains(t, out, "2種")
	assert.Contains(t, out, "未発表")
}

func TestHistoryAndShare(t *testing.T) {
	e := newEnv(t, "")

	out, err := run(t, e, "history", "東京11R")
	require.NoError(t, err)
	assert.Contains(t, out, "分析結果はありません")

	results, err := store.NewSQLiteStore(e.cache, 0)
	require.NoError(t, err)
	require.NoError(t, results.Save(context.Background(), &types.AnalysisResult{
		ID: "0123456789", RaceID: "東京11R", Provider: "gemini", Model: "gemini-2.5-flash",
		Text:      "### 📊 レース総評\n堅い決着。\n\n### 🎯 推奨馬券\n馬連 3-5",
		Attempts:  1,
		CreatedAt: time.Now(),
	}))
	require.NoError(t, results.Close())

	out, err = run(t, e, "history", "東京11R", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "馬連 3-5")

	out, err = run(t, e, "history", "東京11R", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "01234567")

	out, err = run(t, e, "share", "東京11R", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "🏇 東京11R テストS\n1600m / 良 / 15:40")
	assert.Contains(t, out, "堅い決着。")
	assert.NotContains(t, out, "馬連 3-5")

	_, err = run(t, e, "share", "東京11R")
	assert.ErrorContains(t, err, "telegram is not configured")
}

func TestAnalyzeCommand(t *testing.T) {
	var calls int
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"### 🎯 推奨馬券\n馬連 3-5 3000円"}]}}]}`)
	}))
	defer gemini.Close()

	e := newEnv(t, "llm:\n  provider: gemini\n  gemini:\n    api_key: test\n    base_url: "+gemini.URL+"\n"+
		"timeouts:\n  attempt_timeout: 5s\n  max_attempts: 3\n  backoff_base: 10ms\n  max_total: 1m\n  min_interval: 0s\n")

	out, err := run(t, e, "analyze", "東京11R", "--raw", "--bet-type", "馬連")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, out, "馬連 3-5 3000円")
	assert.Contains(t, out, "gemini")

	out, err = run(t, e, "history", "東京11R", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "馬連 3-5 3000円")
}

func TestAnalyzeCommand_MissingKey(t *testing.T) {
	e := newEnv(t, "")
	_, err := run(t, e, "analyze", "東京11R", "--raw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APIキー")
}
