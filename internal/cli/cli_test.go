// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FenixFighter/WebWibe/internal/config"
	"github.com/FenixFighter/WebWibe/internal/knowledge"
	"github.com/FenixFighter/WebWibe/internal/storage"
)

const testCorpus = `question,answer,category
How do I reset my card PIN?,Open the app and choose Cards then Reset PIN.,cards
How do I block a lost card?,Call the hotline or block it in the app under Cards.,cards
What is the daily transfer limit?,The daily transfer limit is 5000 EUR.,transfers
`

// =============================================================================
// HELPERS
// =============================================================================

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeConfig writes a quiet config file and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[logging]\nlevel = \"error\"\n\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func writeCorpus(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

type envelope[T any] struct {
	Success bool    `json:"success"`
	Data    T       `json:"data"`
	Error   *string `json:"error"`
	Command string  `json:"command"`
}

func decodeEnvelope[T any](t *testing.T, out string) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	return env
}

// =============================================================================
// ROOT
// =============================================================================

func TestRootCommand_Version(t *testing.T) {
	out, err := runCLI(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "webwibe "+Version)
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "ask", "corpus", "transcript", "agents", "config"} {
		assert.Contains(t, names, want)
	}
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	cfgPath := writeConfig(t, "")
	_, err := runCLI(t, "", "config", "show", "--config", cfgPath, "--log-level", "loud")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	cfgPath := writeConfig(t, "[server]\nport = 70000\n")
	_, err := runCLI(t, "", "config", "show", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_AutomatedAnswer(t *testing.T) {
	cfgPath := writeConfig(t, "")
	corpus := writeCorpus(t, "faq.csv", testCorpus)

	out, err := runCLI(t, "", "ask", "How do I reset my card PIN?",
		"--config", cfgPath, "--corpus", corpus,
		"--answer", "Open the app, go to Cards and choose Reset PIN. You will receive a confirmation.",
		"--json")
	require.NoError(t, err)

	type outcome struct {
		Path    string `json:"path"`
		Created bool   `json:"created"`
		Stage   string `json:"search_stage"`
		Reply   *struct {
			Content string `json:"content"`
		} `json:"reply"`
		Quality *struct {
			Score int `json:"score"`
		} `json:"quality"`
	}
	env := decodeEnvelope[outcome](t, out)
	require.True(t, env.Success)
	assert.Equal(t, "ask", env.Command)
	assert.Equal(t, "automated", env.Data.Path)
	assert.True(t, env.Data.Created)
	require.NotNil(t, env.Data.Reply)
	assert.Contains(t, env.Data.Reply.Content, "Reset PIN")
	require.NotNil(t, env.Data.Quality)
	assert.GreaterOrEqual(t, env.Data.Quality.Score, 0)
	assert.LessOrEqual(t, env.Data.Quality.Score, 100)
}

func TestAsk_HumanReadable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	cfgPath := writeConfig(t, "")
	corpus := writeCorpus(t, "faq.csv", testCorpus)

	out, err := runCLI(t, "", "ask", "What is the daily transfer limit?",
		"--config", cfgPath, "--corpus", corpus,
		"--answer", "The daily transfer limit is 5000 EUR.")
	require.NoError(t, err)
	assert.Contains(t, out, "automated")
	assert.Contains(t, out, "5000 EUR")
	assert.Contains(t, out, "Quality")
}

func TestAsk_EmptyQuestion(t *testing.T) {
	_, err := runCLI(t, "", "ask", "   ")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

// =============================================================================
// CORPUS
// =============================================================================

func TestCorpusCheck(t *testing.T) {
	corpus := writeCorpus(t, "faq.csv", testCorpus)

	out, err := runCLI(t, "", "corpus", "check", corpus, "--json")
	require.NoError(t, err)

	env := decodeEnvelope[CorpusReport](t, out)
	require.True(t, env.Success)
	assert.Equal(t, 3, env.Data.Entries)
	assert.Equal(t, map[string]int{"cards": 2, "transfers": 1}, env.Data.Categories)
}

func TestCorpusCheck_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		body     string
		wantCode int
		wantErr  error
	}{
		{"unsupported extension", "faq.txt", testCorpus, ExitUsageError, knowledge.ErrUnsupportedFormat},
		{"no usable rows", "faq.csv", "question,answer,category\n,missing question,cards\n", ExitGeneralError, knowledge.ErrEmptyCorpus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCorpus(t, tt.file, tt.body)
			_, err := runCLI(t, "", "corpus", "check", path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCode, ExitCode(err))
		})
	}
}

func TestCorpusImport(t *testing.T) {
	corpus := writeCorpus(t, "faq.csv", testCorpus)
	store := filepath.Join(t.TempDir(), "data", "knowledge.db")

	out, err := runCLI(t, "", "corpus", "import", corpus, "--store", store, "--json")
	require.NoError(t, err)

	env := decodeEnvelope[CorpusReport](t, out)
	require.True(t, env.Success)
	assert.Equal(t, 3, env.Data.Entries)
	assert.Equal(t, store, env.Data.Store)

	s, err := knowledge.OpenSQLiteStore(store)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCorpusImport_RequiresStore(t *testing.T) {
	cfgPath := writeConfig(t, "")
	corpus := writeCorpus(t, "faq.csv", testCorpus)

	_, err := runCLI(t, "", "corpus", "import", corpus, "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func seedTranscripts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = fs.CreateConversation(ctx, "conv-1", "Dana", "dana@example.com")
	require.NoError(t, err)
	_, err = fs.PersistTranscript(ctx, "conv-1", "How do I reset my card PIN?", storage.SenderUser)
	require.NoError(t, err)
	_, err = fs.PersistTranscript(ctx, "conv-1", "Open the app and choose Reset PIN.", storage.SenderAutomated)
	require.NoError(t, err)
	return dir
}

func TestTranscriptList(t *testing.T) {
	dir := seedTranscripts(t)

	out, err := runCLI(t, "", "transcript", "list", "--dir", dir, "--json")
	require.NoError(t, err)

	env := decodeEnvelope[[]storage.ConversationMeta](t, out)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "conv-1", env.Data[0].ID)
	assert.Equal(t, 2, env.Data[0].MessageCount)
}

func TestTranscriptExport(t *testing.T) {
	dir := seedTranscripts(t)

	tests := []struct {
		format string
		want   string
	}{
		{"json", `"id": "conv-1"`},
		{"yaml", "id: conv-1"},
		{"markdown", "# Conversation conv-1"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := runCLI(t, "", "transcript", "export", "conv-1", "--dir", dir, "--format", tt.format)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "Reset PIN")
		})
	}
}

func TestTranscriptExport_ToFile(t *testing.T) {
	dir := seedTranscripts(t)
	target := filepath.Join(t.TempDir(), "conv.md")

	_, err := runCLI(t, "", "transcript", "export", "conv-1", "--dir", dir, "-o", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Conversation conv-1")
}

func TestTranscriptExport_Errors(t *testing.T) {
	dir := seedTranscripts(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"invalid id", []string{"transcript", "export", "../etc", "--dir", dir}, ExitUsageError},
		{"unknown id", []string{"transcript", "export", "conv-404", "--dir", dir}, ExitNotFoundError},
		{"bad format", []string{"transcript", "export", "conv-1", "--dir", dir, "--format", "pdf"}, ExitUsageError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, "", tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, ExitCode(err))
		})
	}
}

// =============================================================================
// AGENTS
// =============================================================================

func TestHashPassword_Stdin(t *testing.T) {
	out, err := runCLI(t, "s3cret\n", "agents", "hash-password", "--stdin", "--json")
	require.NoError(t, err)

	env := decodeEnvelope[map[string]string](t, out)
	hash := env.Data["password_hash"]
	require.NotEmpty(t, hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestHashPassword_EmptyInput(t *testing.T) {
	_, err := runCLI(t, "\n", "agents", "hash-password", "--stdin")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestTOTPSecret(t *testing.T) {
	out, err := runCLI(t, "", "agents", "totp-secret", "alice", "--json")
	require.NoError(t, err)

	env := decodeEnvelope[map[string]string](t, out)
	assert.NotEmpty(t, env.Data["secret"])
	assert.True(t, strings.HasPrefix(env.Data["url"], "otpauth://totp/"), env.Data["url"])
}

func TestAgentsList(t *testing.T) {
	cfgPath := writeConfig(t, `[[agents.accounts]]
id = "agent-1"
username = "alice"
role = "support"
password_hash = "$2a$04$abcdefghijklmnopqrstuu"
totp_secret = "JBSWY3DPEHPK3PXP"

[[agents.accounts]]
id = "agent-2"
username = "bob"
password_hash = "$2a$04$abcdefghijklmnopqrstuu"
`)

	out, err := runCLI(t, "", "agents", "list", "--config", cfgPath, "--json")
	require.NoError(t, err)

	env := decodeEnvelope[[]AgentSummary](t, out)
	require.Len(t, env.Data, 2)
	assert.Equal(t, AgentSummary{ID: "agent-1", Username: "alice", Role: "support", MFA: true}, env.Data[0])
	assert.Equal(t, "support", env.Data[1].Role)
	assert.False(t, env.Data[1].MFA)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigInitGetPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webwibe", "config.toml")

	_, err := runCLI(t, "", "config", "init", "--config", path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out, err := runCLI(t, "", "config", "get", "server.port", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(config.Default().Server.Port), strings.TrimSpace(out))

	out, err = runCLI(t, "", "config", "path", "--config", path, "--json")
	require.NoError(t, err)
	env := decodeEnvelope[map[string]any](t, out)
	assert.Equal(t, path, env.Data["path"])
	assert.Equal(t, true, env.Data["exists"])

	_, err = runCLI(t, "", "config", "init", "--config", path)
	require.Error(t, err, "init must not overwrite without --force")

	_, err = runCLI(t, "", "config", "init", "--config", path, "--force")
	require.NoError(t, err)
}

func TestConfigGet_UnknownKey(t *testing.T) {
	cfgPath := writeConfig(t, "")
	_, err := runCLI(t, "", "config", "get", "server.nope", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	cfgPath := writeConfig(t, "[generator]\napi_key = \"sk-very-secret\"\n")
	out, err := runCLI(t, "", "config", "show", "--config", cfgPath)
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-very-secret")
	assert.Contains(t, out, "[REDACTED]")
}

// =============================================================================
// ERRORS AND TERMINAL HELPERS
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationError("port", "x", "bad"), ExitUsageError},
		{"not found", NewNotFoundError("conversation", "c"), ExitNotFoundError},
		{"storage not found", fmt.Errorf("load: %w", storage.ErrNotFound), ExitNotFoundError},
		{"config", &configError{err: errors.New("broken")}, ExitConfigError},
		{"wrapped format", NewCommandError("corpus", "parse", "f", knowledge.ErrUnsupportedFormat), ExitUsageError},
		{"generic", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestCommandError(t *testing.T) {
	inner := errors.New("disk full")
	err := NewCommandError("corpus", "import", "write failed", inner)
	assert.Equal(t, "corpus import failed: write failed: disk full", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"fits", "short line", 40, "short line"},
		{"wraps on words", "one two three four", 12, "one two\nthree four"},
		{"keeps paragraphs", "a b\n\nc", 40, "a b\n\nc"},
		{"wide runes count double", "日本語 日本語 日本語", 16, "日本語 日本語\n日本語"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WrapText(tt.text, tt.width))
		})
	}
}
