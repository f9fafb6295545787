package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsWholeWord(t *testing.T) {
	assert.True(t, containsWholeWord("A red bicycle leans against the wall.", "bicycle"))
	assert.True(t, containsWholeWord("A RED Bicycle.", "bicycle"))
	assert.False(t, containsWholeWord("A bicyclette leans against the wall.", "bicycle"))
	assert.False(t, containsWholeWord("nothing relevant here", ""))
}

func TestComputeQualityScoreIsBounded(t *testing.T) {
	short := computeQualityScore("ok", 1)
	assert.GreaterOrEqual(t, short, 0.0)
	assert.LessOrEqual(t, short, 1.0)

	long := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 50)
	rich := computeQualityScore(long, 500)
	assert.GreaterOrEqual(t, rich, 0.0)
	assert.LessOrEqual(t, rich, 1.0)
	assert.Greater(t, rich, short)
}

func TestCountStructuralMarkers(t *testing.T) {
	assert.Equal(t, 0, countStructuralMarkers("plain sentence with no markers"))
	assert.Equal(t, 3, countStructuralMarkers("1. first item (an aside); second point"))
	assert.Equal(t, 1, countStructuralMarkers("just a semicolon; nothing else"))
}

func TestDescriptionHashIsStableAndContentSensitive(t *testing.T) {
	a := descriptionHash("a red bicycle")
	b := descriptionHash("a red bicycle")
	c := descriptionHash("a blue bicycle")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
