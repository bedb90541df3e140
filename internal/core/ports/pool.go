package ports

// WorkerPool runs loader jobs on background goroutines with bounded
// concurrency. Go never blocks the caller: a job submitted while the pool is
// saturated queues until a slot frees up. The loader holds its own lock while
// submitting, so a blocking submit would deadlock against jobs that need the
// same lock to finish.
//
//go:generate go run go.uber.org/mock/mockgen -source=pool.go -destination=mocks/mock_pool.go -package=mocks
type WorkerPool interface {
	Go(fn func())
}
