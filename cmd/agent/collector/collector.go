// Package collector samples Go runtime statistics as XML documents for the
// monitoring helper.
package collector

import (
	"context"
	"math/rand"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/beevik/etree"
)

// RuntimeSupplier produces a memory document and a process document on
// every call.
type RuntimeSupplier struct {
	pollCount atomic.Int64
}

func NewRuntimeSupplier() *RuntimeSupplier {
	return &RuntimeSupplier{}
}

// PollCount is the number of completed samples.
func (s *RuntimeSupplier) PollCount() int64 { return s.pollCount.Load() }

// Get implements monitoring.Supplier.
func (s *RuntimeSupplier) Get(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	poll := s.pollCount.Add(1)

	memory, err := memoryDocument(&m)
	if err != nil {
		return nil, err
	}
	process, err := processDocument(&m, poll)
	if err != nil {
		return nil, err
	}
	return []string{memory, process}, nil
}

func addUint(parent *etree.Element, name string, v uint64) {
	parent.CreateElement(name).SetText(strconv.FormatUint(v, 10))
}

func addFloat(parent *etree.Element, name string, v float64) {
	parent.CreateElement(name).SetText(strconv.FormatFloat(v, 'g', -1, 64))
}

func memoryDocument(m *runtime.MemStats) (string, error) {
	doc := etree.NewDocument()
	root := doc.CreateElement("memory")

	heap := root.CreateElement("heap")
	addUint(heap, "Alloc", m.HeapAlloc)
	addUint(heap, "Idle", m.HeapIdle)
	addUint(heap, "Inuse", m.HeapInuse)
	addUint(heap, "Objects", m.HeapObjects)
	addUint(heap, "Released", m.HeapReleased)
	addUint(heap, "Sys", m.HeapSys)

	stack := root.CreateElement("stack")
	addUint(stack, "Inuse", m.StackInuse)
	addUint(stack, "Sys", m.StackSys)

	addUint(root, "Alloc", m.Alloc)
	addUint(root, "TotalAlloc", m.TotalAlloc)
	addUint(root, "Sys", m.Sys)
	addUint(root, "Mallocs", m.Mallocs)
	addUint(root, "Frees", m.Frees)
	addUint(root, "Lookups", m.Lookups)
	addUint(root, "BuckHashSys", m.BuckHashSys)
	addUint(root, "MCacheInuse", m.MCacheInuse)
	addUint(root, "MCacheSys", m.MCacheSys)
	addUint(root, "MSpanInuse", m.MSpanInuse)
	addUint(root, "MSpanSys", m.MSpanSys)
	addUint(root, "OtherSys", m.OtherSys)

	return doc.WriteToString()
}

func processDocument(m *runtime.MemStats, poll int64) (string, error) {
	doc := etree.NewDocument()
	root := doc.CreateElement("process")
	root.CreateAttr("go", runtime.Version())

	gc := root.CreateElement("gc")
	addUint(gc, "NumGC", uint64(m.NumGC))
	addUint(gc, "NumForcedGC", uint64(m.NumForcedGC))
	addUint(gc, "PauseTotalNs", m.PauseTotalNs)
	addUint(gc, "NextGC", m.NextGC)
	addUint(gc, "LastGC", m.LastGC)
	addUint(gc, "Sys", m.GCSys)
	addFloat(gc, "CPUFraction", m.GCCPUFraction)

	addUint(root, "Goroutines", uint64(runtime.NumGoroutine()))
	addUint(root, "CPUs", uint64(runtime.NumCPU()))
	addUint(root, "CgoCalls", uint64(runtime.NumCgoCall()))
	addUint(root, "PollCount", uint64(poll))
	addFloat(root, "RandomValue", rand.Float64())

	// attribute-only leaf, flattened to "sampler name"
	root.CreateElement("sampler").CreateAttr("name", "runtime")

	return doc.WriteToString()
}
