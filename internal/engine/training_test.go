package engine

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsieve/core/domain"
)

func readJSONLines(t *testing.T, path string) []domain.TrainingLine {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var lines []domain.TrainingLine
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		var l domain.TrainingLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &l))
		lines = append(lines, l)
	}
	return lines
}

func TestTrainingEmitterAppendsJSONLPerCategory(t *testing.T) {
	dir := t.TempDir()
	emitter, err := NewTrainingEmitter(dir, zerolog.Nop())
	require.NoError(t, err)
	defer emitter.Close()

	line := domain.TrainingLine{
		Subject:         "Server down",
		Body:            "page on-call",
		From:            "alerts@example.com",
		To:              "me@example.com",
		Cc:              "",
		MassMail:        false,
		AttachmentTypes: []string{"LOG"},
	}
	emitter.Emit("URGENT", line)
	emitter.Emit("URGENT", line)

	decoded := readJSONLines(t, filepath.Join(dir, "URGENT.jsonl"))
	require.Len(t, decoded, 2, "two Emit calls append two lines")
	assert.Equal(t, line, decoded[0])
	assert.Equal(t, line, decoded[1])
}

func TestTrainingEmitterSeparateFilesPerCategory(t *testing.T) {
	dir := t.TempDir()
	emitter, err := NewTrainingEmitter(dir, zerolog.Nop())
	require.NoError(t, err)
	defer emitter.Close()

	emitter.Emit("URGENT", domain.TrainingLine{Subject: "u"})
	emitter.Emit("NOISE", domain.TrainingLine{Subject: "n"})

	assert.Len(t, readJSONLines(t, filepath.Join(dir, "URGENT.jsonl")), 1)
	assert.Len(t, readJSONLines(t, filepath.Join(dir, "NOISE.jsonl")), 1)
}

func TestTrainingEmitterFieldNamesAndCasing(t *testing.T) {
	dir := t.TempDir()
	emitter, err := NewTrainingEmitter(dir, zerolog.Nop())
	require.NoError(t, err)
	defer emitter.Close()

	emitter.Emit("NOISE", domain.TrainingLine{
		Subject: "s", Body: "b", From: "f", To: "t", Cc: "c",
		MassMail: true, AttachmentTypes: []string{"PDF"},
	})

	data, err := os.ReadFile(filepath.Join(dir, "NOISE.jsonl"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &raw))

	for _, field := range []string{"subject", "body", "from", "to", "cc", "mass_mail", "attachment_types"} {
		_, ok := raw[field]
		assert.True(t, ok, "field %q must be present per spec §6's training-data line format", field)
	}
}

func TestTrainingEmitterCreatesDirIfAbsent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "training")
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	emitter, err := NewTrainingEmitter(dir, zerolog.Nop())
	require.NoError(t, err)
	defer emitter.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
