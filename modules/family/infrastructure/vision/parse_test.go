package vision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/vision"
)

func TestParseRecords(t *testing.T) {
	t.Run("plain array", func(t *testing.T) {
		got, err := vision.ParseRecords(`[{"full_name":"محمد","parent_name":null,"branch_name":"الفرع"}]`)
		require.NoError(t, err)
		assert.Equal(t, []member.ExtractedRecord{{FullName: "محمد", BranchName: "الفرع"}}, got)
	})

	t.Run("fenced with language tag", func(t *testing.T) {
		raw := "```json\n[{\"full_name\":\" علي \",\"parent_name\":\"محمد\",\"branch_name\":\"الفرع\"}]\n```"
		got, err := vision.ParseRecords(raw)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "علي", got[0].FullName)
		assert.Equal(t, "محمد", got[0].ParentName)
	})

	t.Run("empty array", func(t *testing.T) {
		got, err := vision.ParseRecords("[]")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("object is rejected", func(t *testing.T) {
		_, err := vision.ParseRecords(`{"full_name":"محمد"}`)
		require.ErrorIs(t, err, vision.ErrNotJSONArray)
	})

	t.Run("prose is rejected", func(t *testing.T) {
		_, err := vision.ParseRecords("I could not read the image.")
		require.ErrorIs(t, err, vision.ErrNotJSONArray)
	})

	t.Run("truncated array", func(t *testing.T) {
		_, err := vision.ParseRecords(`[{"full_name":"محمد"`)
		require.ErrorIs(t, err, vision.ErrNotJSONArray)
	})
}

func TestMediaTypeFor(t *testing.T) {
	for name, want := range map[string]string{
		"tree.PNG":  "image/png",
		"tree.jpg":  "image/jpeg",
		"tree.jpeg": "image/jpeg",
		"tree.webp": "image/webp",
	} {
		got, err := vision.MediaTypeFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := vision.MediaTypeFor("tree.xlsx")
	require.Error(t, err)
}

func TestNewImage(t *testing.T) {
	img, err := vision.NewImage("/tmp/scans/branch.png", []byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "branch.png", img.Name)
	assert.Equal(t, "image/png", img.MediaType)
}
