package router

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteParsesDepartmentIDs(t *testing.T) {
	for _, id := range []int64{0, 1, 20, 90, 4711, 9223372036854775807} {
		t.Run(fmt.Sprintf("id_%d", id), func(t *testing.T) {
			got, err := Route(fmt.Sprintf("/%d", id))
			require.NoError(t, err)
			assert.Equal(t, id, got)
		})
	}
}

func TestRouteRejectsNonIntegers(t *testing.T) {
	for _, segment := range []string{"abc", "12abc", "1.5", "ninety", "%20", "nil"} {
		t.Run(segment, func(t *testing.T) {
			_, err := Route("/" + segment)
			assert.ErrorIs(t, err, ErrNotAnInteger)
		})
	}
}

func TestRouteIgnoresNonSemanticPaths(t *testing.T) {
	for _, path := range []string{"/", "/favicon.ico", "/robots.txt"} {
		t.Run(path, func(t *testing.T) {
			_, err := Route(path)
			assert.ErrorIs(t, err, ErrIgnored)
		})
	}
}

func TestRouteUsesFirstSegmentOnly(t *testing.T) {
	got, err := Route("/90/extra/segments")
	require.NoError(t, err)
	assert.Equal(t, int64(90), got)
}

func TestRouteDoesNoRangeValidation(t *testing.T) {
	// Existence is decided by the query returning zero rows, not the router.
	got, err := Route("/-5")
	require.NoError(t, err)
	assert.Equal(t, int64(-5), got)
}
