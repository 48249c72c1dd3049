package jobpool

import (
	"context"
	"strconv"
	"testing"

	"golang.org/x/sync/errgroup"
)

// task simulates some CPU-bound work
func task(n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += i
	}
	return sum
}

// benchTask is a somewhat realistic task that combines CPU work with memory allocation
func benchTask(size int) []int { //nolint:unparam // size is used in the benchmark
	res := make([]int, 0, size)
	for i := 0; i < size; i++ {
		res = append(res, task(1))
	}
	return res
}

func BenchmarkPool(b *testing.B) {
	size, workers, iterations := 1000, 8, 100
	job := JobFunc(func(context.Context) error {
		benchTask(size)
		return nil
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		p := New(workers)
		for j := 0; j < iterations; j++ {
			_ = p.AddJob(job)
		}
		b.StartTimer()

		if err := p.Join(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkQueue(b *testing.B) {
	q := NewQueue[int](false)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Push(i)
		_, _ = q.Pop()
		q.CompleteJob()
	}
}

func BenchmarkPoolCompare(b *testing.B) {
	workers := []int{16, 8, 4, 1}
	iterations := 500

	for _, w := range workers {
		prefix := "workers=" + strconv.Itoa(w)

		b.Run(prefix+"/pool", func(b *testing.B) {
			job := JobFunc(func(context.Context) error {
				benchTask(w)
				return nil
			})
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				p := New(w, WithoutAutoStop())
				b.StartTimer()

				go func() {
					for j := 0; j < iterations; j++ {
						_ = p.AddJob(job)
					}
					p.Close()
				}()
				_ = p.Join(ctx)
			}
		})

		b.Run(prefix+"/errgroup", func(b *testing.B) {
			ctx := context.Background()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				b.StopTimer()
				items := make(chan int, iterations)
				g, _ := errgroup.WithContext(ctx)
				g.SetLimit(w)
				b.StartTimer()
				for range w {
					g.Go(func() error {
						for range items {
							benchTask(w)
						}
						return nil
					})
				}

				go func() {
					for j := 0; j < iterations; j++ {
						items <- j
					}
					close(items)
				}()

				if err := g.Wait(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
