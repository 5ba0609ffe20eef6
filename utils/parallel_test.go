package utils

import (
	"context"
	"image"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestGroupWorkParallel(t *testing.T) {
	for _, total := range []int{0, 1, 7, 1000} {
		counts := make([]int32, total)
		var groups int
		err := GroupWorkParallel(context.Background(), total, func(n int) { groups = n },
			func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
				test.That(t, to-from, test.ShouldEqual, groupSize)
				return func(memberNum, workNum int) {
					atomic.AddInt32(&counts[workNum], 1)
				}, nil
			})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, groups, test.ShouldBeGreaterThan, 0)
		for _, c := range counts {
			test.That(t, c, test.ShouldEqual, int32(1))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := GroupWorkParallel(ctx, 10, nil, func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
		return func(memberNum, workNum int) {}, nil
	})
	test.That(t, err, test.ShouldBeError, context.Canceled)
}

func TestParallelForEachPixel(t *testing.T) {
	size := image.Point{X: 13, Y: 7}
	var visited int32
	seen := make([]int32, size.X*size.Y)
	ParallelForEachPixel(size, func(x, y int) {
		atomic.AddInt32(&visited, 1)
		atomic.AddInt32(&seen[y*size.X+x], 1)
	})
	test.That(t, visited, test.ShouldEqual, int32(size.X*size.Y))
	for _, s := range seen {
		test.That(t, s, test.ShouldEqual, int32(1))
	}
}
