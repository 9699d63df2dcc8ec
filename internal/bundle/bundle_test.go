package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonasrichard/mediamosaic/internal/models"
)

func images(dims ...[2]int) *models.Directory {
	dir := &models.Directory{}
	for i, d := range dims {
		dir.Images = append(dir.Images, &models.Image{ID: i + 1, Width: d[0], Height: d[1]})
	}
	return dir
}

func TestGroupWorkedExample(t *testing.T) {
	dir := images([2]int{100, 50}, [2]int{120, 50}, [2]int{90, 60})

	bundles := Group(dir.Images, 8, "jpg")
	require.Len(t, bundles, 2)

	assert.Equal(t, 1, bundles[0].ID)
	assert.Equal(t, "thumbs_1.jpg", bundles[0].FileName)
	assert.Equal(t, 50, bundles[0].Height)
	assert.Equal(t, []int{1, 2}, bundles[0].ImageIDs)
	assert.Equal(t, 220, Width(dir, bundles[0]))
	assert.Equal(t, []int{0, 100}, Offsets(dir, bundles[0]))

	assert.Equal(t, "thumbs_2.jpg", bundles[1].FileName)
	assert.Equal(t, 60, bundles[1].Height)
	assert.Equal(t, []int{3}, bundles[1].ImageIDs)
	assert.Equal(t, 90, Width(dir, bundles[1]))
	assert.Equal(t, []int{0}, Offsets(dir, bundles[1]))
}

func TestGroupManyImages(t *testing.T) {
	sameHeight := make([][2]int, 0, 21)
	for i := 0; i < 21; i++ {
		sameHeight = append(sameHeight, [2]int{40 + i*7%33, 64})
	}
	twoHeights := make([][2]int, 0, 26)
	for i := 0; i < 26; i++ {
		twoHeights = append(twoHeights, [2]int{30 + i, 48 + 16*(i%2)})
	}

	tests := []struct {
		name        string
		dims        [][2]int
		wantBundles int
	}{
		{"21 same height", sameHeight, 3},
		{"26 alternating heights", twoHeights, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := images(tt.dims...)
			bundles := Group(dir.Images, 8, "jpg")
			require.Len(t, bundles, tt.wantBundles)

			seen := make(map[int]int)
			for i, b := range bundles {
				assert.Equal(t, i+1, b.ID)
				assert.LessOrEqual(t, len(b.ImageIDs), 8)

				offsets := Offsets(dir, b)
				x := 0
				for j, id := range b.ImageIDs {
					img := dir.Image(id)
					require.NotNil(t, img)
					assert.Equal(t, b.Height, img.Height)
					assert.Equal(t, x, offsets[j], "bundle %d member %d", b.ID, j)
					x += img.Width
					seen[id]++
				}
				assert.Equal(t, Width(dir, b), x)
			}

			assert.Len(t, seen, len(tt.dims))
			for id, n := range seen {
				assert.Equal(t, 1, n, "image %d", id)
			}
		})
	}
}

func TestGroupSpillsWhenFull(t *testing.T) {
	dims := make([][2]int, 0, 10)
	for i := 0; i < 9; i++ {
		dims = append(dims, [2]int{10, 40})
	}
	dims = append(dims, [2]int{10, 30})
	dir := images(dims...)

	bundles := Group(dir.Images, 8, "png")
	require.Len(t, bundles, 3)
	assert.Len(t, bundles[0].ImageIDs, 8)
	assert.Equal(t, []int{9}, bundles[1].ImageIDs)
	assert.Equal(t, 40, bundles[1].Height)
	assert.Equal(t, []int{10}, bundles[2].ImageIDs)
	assert.Equal(t, "thumbs_3.png", bundles[2].FileName)
}

func TestGroupIsFirstFit(t *testing.T) {
	// Capacity 2: heights 5,5,5,7,5 fill bundle 1, open 2 for the third 5,
	// open 3 for the 7, and the last 5 goes back to bundle 2.
	dir := images([2]int{1, 5}, [2]int{1, 5}, [2]int{1, 5}, [2]int{1, 7}, [2]int{1, 5})

	bundles := Group(dir.Images, 2, "")
	require.Len(t, bundles, 3)
	assert.Equal(t, []int{1, 2}, bundles[0].ImageIDs)
	assert.Equal(t, []int{3, 5}, bundles[1].ImageIDs)
	assert.Equal(t, []int{4}, bundles[2].ImageIDs)
	assert.Equal(t, "thumbs_1.jpg", bundles[0].FileName)
}

func TestGroupDefaults(t *testing.T) {
	assert.Empty(t, Group(nil, 0, ""))

	bundles := Group(images([2]int{3, 3}).Images, 0, "")
	require.Len(t, bundles, 1)
	assert.Equal(t, models.DefaultBundleCapacity, bundles[0].Capacity)
}

func TestIndex(t *testing.T) {
	dir := images([2]int{100, 50}, [2]int{120, 50}, [2]int{90, 60})
	bundles := Group(dir.Images, 8, "jpg")

	idx := Index(bundles)
	require.Len(t, idx, 3)
	assert.Equal(t, 1, idx[2].Position)
	assert.Same(t, bundles[0], idx[2].Bundle)
	assert.Same(t, bundles[1], idx[3].Bundle)
}
