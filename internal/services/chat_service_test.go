package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestPreviewTextKeepsShortMessages(t *testing.T) {
	assert.Equal(t, "oi, tudo bem?", previewText("oi, tudo bem?"))
	assert.Equal(t, "", previewText(""))
}

func TestPreviewTextTruncatesLongMessages(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := previewText(long)
	assert.Equal(t, strings.Repeat("a", chatPreviewLen)+"…", got)
}

func TestPreviewTextNeverSplitsMultiByteRunes(t *testing.T) {
	// Two-byte runes throughout: a byte-offset cut would land mid-sequence.
	long := strings.Repeat("ã", 120)
	got := previewText(long)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("ã", chatPreviewLen)+"…", got)
	assert.Equal(t, chatPreviewLen+1, utf8.RuneCountInString(got))
}
