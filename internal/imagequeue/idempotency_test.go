package imagequeue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_PrefersDescriptionID(t *testing.T) {
	assert.Equal(t, "desc-1", Key("desc-1", "chap-1", "content"))
}

func TestKey_HashesChapterAndContentWhenNoDescriptionID(t *testing.T) {
	a := Key("", "chap-1", "the old tower")
	b := Key("", "chap-1", "the old tower")
	c := Key("", "chap-1", "a different passage")

	assert.Equal(t, a, b, "expected deterministic hash")
	assert.NotEqual(t, a, c, "expected distinct content to hash differently")
	assert.Len(t, a, 64, "expected a 32-byte hex sha256 digest")
}

func TestKey_DifferentChaptersSameContentHashDifferently(t *testing.T) {
	a := Key("", "chap-1", "shared text")
	b := Key("", "chap-2", "shared text")
	assert.NotEqual(t, a, b)
}
