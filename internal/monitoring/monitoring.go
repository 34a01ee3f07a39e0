// Package monitoring samples XML documents on a fixed delay and routes them
// to an ingestion sink.
//
// A typical caller starts monitoring when its work begins and stops it when
// the work ends:
//
//	h, err := monitoring.NewBuilder(supplier, client).ScriptName("checkout").Build()
//	...
//	h.StartMonitoring(0)
//	defer h.StopMonitoring(0)
package monitoring

import (
	"context"
	"time"
)

// DefaultPeriod is the delay between two executions when none is given.
const DefaultPeriod = 30 * time.Second

// DefaultStopTimeout bounds StopMonitoring when no timeout is given.
const DefaultStopTimeout = 60 * time.Second

//go:generate mockgen -source=monitoring.go -destination=mocks/mock_monitoring.go -package=mocks

// Supplier produces the XML documents of one execution.
type Supplier interface {
	Get(ctx context.Context) ([]string, error)
}

// SupplierFunc adapts a function to Supplier.
type SupplierFunc func(ctx context.Context) ([]string, error)

func (f SupplierFunc) Get(ctx context.Context) ([]string, error) { return f(ctx) }

// Sink accepts raw XML documents. Whether the document is flattened locally
// or by the server is up to the sink.
type Sink interface {
	AddXMLEntries(ctx context.Context, xml string, parentPath []string, timestamp int64, charset string) error
}
