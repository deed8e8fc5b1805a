package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/ceyewan/pkseq/clog"
	"github.com/ceyewan/pkseq/uid"
	"github.com/ceyewan/pkseq/uid/counter"
)

func main() {
	fmt.Println("=== uid 组件使用示例 ===")

	ctx := context.Background()
	if err := clog.Init(ctx, clog.GetDefaultConfig("development")); err != nil {
		panic(err)
	}

	fmt.Println("\n1. 单序列模式")
	singleNameExample(ctx)

	fmt.Println("\n2. 多序列模式")
	multiNameExample(ctx)

	fmt.Println("\n3. 并发取号")
	concurrentExample(ctx)

	fmt.Println("\n4. 错误处理")
	errorExample(ctx)
}

func singleNameExample(ctx context.Context) {
	cfg := uid.GetDefaultConfig("development").
		SetServiceName("example").
		SetDriver(uid.DriverMemory, "").
		SetName("order")
	cfg.Seeds = []counter.Row{{Key: "order", Value: 1000, Step: 100}}

	provider, err := uid.New(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer provider.Close()

	for i := 0; i < 3; i++ {
		id, err := provider.Next(ctx)
		if err != nil {
			panic(err)
		}
		fmt.Printf("order id: %d\n", id)
	}
}

func multiNameExample(ctx context.Context) {
	store := counter.NewMemoryStore(
		counter.Row{Key: "order", Value: 0, Step: 50},
		counter.Row{Key: "payment", Value: 90000, Step: 50},
	)

	cfg := uid.GetDefaultConfig("development").SetServiceName("example").SetPolicy("sync")
	provider, err := uid.New(ctx, cfg, uid.WithStore(store))
	if err != nil {
		panic(err)
	}
	defer provider.Close()

	for _, name := range []string{"order", "payment", "order"} {
		id, err := provider.Get(ctx, name)
		if err != nil {
			panic(err)
		}
		fmt.Printf("%s id: %d\n", name, id)
	}

	stats, _ := provider.Stats("payment")
	fmt.Printf("payment segment: [%d, %d], remaining %d\n", stats.Start, stats.End, stats.Remaining)
}

func concurrentExample(ctx context.Context) {
	store := counter.NewMemoryStore(counter.Row{Key: "order", Value: 0, Step: 10})
	cfg := uid.GetDefaultConfig("development").SetServiceName("example").SetName("order")
	provider, err := uid.New(ctx, cfg, uid.WithStore(store))
	if err != nil {
		panic(err)
	}
	defer provider.Close()

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
		wg   sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id, err := provider.Next(ctx)
				if err != nil {
					clog.Error("取号失败", clog.Err(err))
					return
				}
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	row, _ := store.Row("order")
	fmt.Printf("distinct ids: %d, counter value: %d\n", len(seen), row.Value)
}

func errorExample(ctx context.Context) {
	store := counter.NewMemoryStore(counter.Row{Key: "bad", Value: 0, Step: 0})
	cfg := uid.GetDefaultConfig("development").SetServiceName("example")
	provider, err := uid.New(ctx, cfg, uid.WithStore(store))
	if err != nil {
		panic(err)
	}
	defer provider.Close()

	for _, name := range []string{"bad", "missing"} {
		_, err := provider.Get(ctx, name)
		fmt.Printf("%s: fatal=%v err=%v\n", name, uid.IsFatalConfig(err), err)
	}
}
