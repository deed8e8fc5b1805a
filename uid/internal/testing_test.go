package internal

import (
	"testing"

	"github.com/ceyewan/pkseq/clog"
	"github.com/ceyewan/pkseq/uid/counter"
)

func testLogger() clog.Logger {
	return clog.Namespace("uid-test")
}

// newTestSequence 基于内存计数器创建序列，测试结束时关闭执行器
func newTestSequence(t *testing.T, store counter.Store, name string, opts SequenceOptions) *Sequence {
	t.Helper()
	pool := NewWorkerPool(2)
	t.Cleanup(pool.Close)

	opts.Claimer = NewClaimer(store, testLogger())
	opts.Pool = pool
	opts.Logger = testLogger()
	return NewSequence(name, opts)
}
