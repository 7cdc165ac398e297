package fares

import (
	"fmt"
	"testing"

	"railfare-backend/lib/scrapers/renfe"

	"github.com/stretchr/testify/require"
)

func makeRides(n int) []renfe.Ride {
	out := make([]renfe.Ride, n)
	for i := range out {
		out[i].TrainType = fmt.Sprintf("AVE-%d", i)
	}
	return out
}

func TestPaginate(t *testing.T) {
	rides := makeRides(13)

	page, num, total := paginate(rides, 1, 5)
	require.Len(t, page, 5)
	require.Equal(t, 1, num)
	require.Equal(t, 3, total)
	require.Equal(t, "AVE-0", page[0].TrainType)

	page, num, _ = paginate(rides, 3, 5)
	require.Len(t, page, 3)
	require.Equal(t, 3, num)
	require.Equal(t, "AVE-10", page[0].TrainType)
}

func TestPaginateClampsPage(t *testing.T) {
	rides := makeRides(13)

	// past-the-end pages land on the last page
	page, num, total := paginate(rides, 4, 5)
	require.Equal(t, 3, num)
	require.Equal(t, 3, total)
	require.Len(t, page, 3)

	page, num, _ = paginate(rides, -2, 5)
	require.Equal(t, 1, num)
	require.Len(t, page, 5)
}

func TestPaginateClampsPerPage(t *testing.T) {
	rides := makeRides(30)

	page, _, total := paginate(rides, 1, 0)
	require.Len(t, page, 1)
	require.Equal(t, 30, total)

	page, _, total = paginate(rides, 1, 100)
	require.Len(t, page, 20)
	require.Equal(t, 2, total)
}

func TestPaginateEmpty(t *testing.T) {
	page, num, total := paginate(nil, 3, 5)
	require.Empty(t, page)
	require.Equal(t, 1, num)
	require.Equal(t, 1, total)
}
