package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseJSON_Plain(t *testing.T) {
	got, err := ParseJSON[payload](`{"name": "abc", "count": 3}`)
	assert.NoError(t, err)
	assert.Equal(t, "abc", got.Name)
	assert.Equal(t, 3, got.Count)
}

func TestParseJSON_SurroundingProse(t *testing.T) {
	response := `Here is the result you asked for:
{"name": "abc", "count": 3}
Let me know if you need anything else.`

	got, err := ParseJSON[payload](response)
	assert.NoError(t, err)
	assert.Equal(t, "abc", got.Name)
}

func TestParseJSON_MarkdownFence(t *testing.T) {
	response := "```json\n{\"name\": \"abc\", \"count\": 3}\n```"

	got, err := ParseJSON[payload](response)
	assert.NoError(t, err)
	assert.Equal(t, 3, got.Count)
}

func TestParseJSON_NoObject(t *testing.T) {
	_, err := ParseJSON[payload]("the model refused to answer")
	assert.Error(t, err)
}

func TestParseJSON_MalformedObject(t *testing.T) {
	_, err := ParseJSON[payload](`{"name": }`)
	assert.Error(t, err)
}
