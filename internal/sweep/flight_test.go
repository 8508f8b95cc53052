package sweep

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func startFlight(t *testing.T) (*FlightServer, *FlightClient) {
	t.Helper()
	srv := NewFlightServer()
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go srv.Serve()
	t.Cleanup(srv.Shutdown)

	port := srv.Addr().(*net.TCPAddr).Port
	c := NewFlightClient("127.0.0.1", port)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return srv, c
}

func TestFlightPublishAndFetch(t *testing.T) {
	srv, c := startFlight(t)
	ctx := context.Background()

	srv.Publish("pool", []Point{
		{Family: "pool", Width: 640, Feasible: true, OutWidth: 320},
		{Family: "pool", Width: 641, Kind: "shape_infeasible", Field: "out_width"},
	})
	srv.Publish("conv", []Point{{Family: "conv", Width: 320, Feasible: true}})

	names, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 2 || names[0] != "conv" || names[1] != "pool" {
		t.Errorf("expected [conv pool], got %v", names)
	}

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	recs, err := c.Fetch(ctx, mem, "pool")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()
	if len(recs) != 1 || recs[0].NumRows() != 2 {
		t.Fatalf("expected one record of 2 rows, got %d records", len(recs))
	}
	field := recs[0].Column(10).(*array.String)
	if !field.IsNull(0) || field.Value(1) != "out_width" {
		t.Errorf("unexpected field column %v", field)
	}
}

func TestFlightUnknownSweep(t *testing.T) {
	_, c := startFlight(t)
	_, err := c.Fetch(context.Background(), memory.NewGoAllocator(), "missing")
	if err == nil {
		t.Fatal("expected an error for an unpublished sweep")
	}

	_, err = c.client.GetFlightInfo(context.Background(), &flight.FlightDescriptor{
		Type: flight.DescriptorPATH, Path: []string{"missing"},
	})
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestFlightClientNotConnected(t *testing.T) {
	c := NewFlightClient("localhost", 0)
	if c.addr != "localhost:8815" {
		t.Errorf("expected the default port, got %s", c.addr)
	}
	if _, err := c.List(context.Background()); !errors.Is(err, errNotConnected) {
		t.Errorf("expected errNotConnected, got %v", err)
	}
	if _, err := c.Fetch(context.Background(), memory.NewGoAllocator(), "pool"); !errors.Is(err, errNotConnected) {
		t.Errorf("expected errNotConnected, got %v", err)
	}
}
