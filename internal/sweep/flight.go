package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// DefaultFlightPort is the Arrow Flight port sweeps are published on.
const DefaultFlightPort = 8815

// FlightServer publishes named sweeps over Arrow Flight. The ticket of a
// sweep is its name.
type FlightServer struct {
	flight.BaseFlightServer

	mu     sync.RWMutex
	sweeps map[string][]Point
	mem    memory.Allocator
	srv    flight.Server
}

func NewFlightServer() *FlightServer {
	return &FlightServer{
		sweeps: make(map[string][]Point),
		mem:    memory.NewGoAllocator(),
	}
}

// Publish makes points available under name, replacing any earlier sweep.
func (s *FlightServer) Publish(name string, points []Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps[name] = points
}

func (s *FlightServer) lookup(name string) ([]Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.sweeps[name]
	return p, ok
}

func (s *FlightServer) info(name string, n int) *flight.FlightInfo {
	return &flight.FlightInfo{
		Schema: flight.SerializeSchema(Schema, s.mem),
		FlightDescriptor: &flight.FlightDescriptor{
			Type: flight.DescriptorPATH,
			Path: []string{name},
		},
		Endpoint:     []*flight.FlightEndpoint{{Ticket: &flight.Ticket{Ticket: []byte(name)}}},
		TotalRecords: int64(n),
		TotalBytes:   -1,
	}
}

func (s *FlightServer) ListFlights(_ *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	s.mu.RLock()
	names := make([]string, 0, len(s.sweeps))
	for name := range s.sweeps {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		points, ok := s.lookup(name)
		if !ok {
			continue
		}
		if err := stream.Send(s.info(name, len(points))); err != nil {
			return err
		}
	}
	return nil
}

func (s *FlightServer) GetFlightInfo(_ context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	if len(desc.GetPath()) != 1 {
		return nil, status.Error(codes.InvalidArgument, "descriptor path must name one sweep")
	}
	name := desc.GetPath()[0]
	points, ok := s.lookup(name)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no sweep %q", name)
	}
	return s.info(name, len(points)), nil
}

func (s *FlightServer) DoGet(tkt *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	name := string(tkt.GetTicket())
	points, ok := s.lookup(name)
	if !ok {
		return status.Errorf(codes.NotFound, "no sweep %q", name)
	}
	rec := Record(s.mem, points)
	defer rec.Release()

	w := flight.NewRecordWriter(stream, ipc.WithSchema(Schema), ipc.WithAllocator(s.mem))
	defer w.Close()
	return w.Write(rec)
}

// Listen binds addr. Use ":0" for an ephemeral port.
func (s *FlightServer) Listen(addr string) error {
	s.srv = flight.NewServerWithMiddleware(nil)
	if err := s.srv.Init(addr); err != nil {
		return fmt.Errorf("listen flight %s: %w", addr, err)
	}
	s.srv.RegisterFlightService(s)
	return nil
}

// Addr is the bound address; valid after Listen.
func (s *FlightServer) Addr() net.Addr { return s.srv.Addr() }

// Serve blocks until Shutdown.
func (s *FlightServer) Serve() error {
	if s.srv == nil {
		return errors.New("flight server not listening, call Listen() first")
	}
	return s.srv.Serve()
}

func (s *FlightServer) Shutdown() {
	if s.srv != nil {
		s.srv.Shutdown()
	}
}

// FlightClient fetches published sweeps.
type FlightClient struct {
	client flight.Client
	addr   string
}

func NewFlightClient(host string, port int) *FlightClient {
	if port <= 0 {
		port = DefaultFlightPort
	}
	return &FlightClient{addr: net.JoinHostPort(host, fmt.Sprint(port))}
}

// Connect dials the server. The connection is plaintext.
func (fc *FlightClient) Connect(ctx context.Context) error {
	client, err := flight.NewClientWithMiddlewareCtx(ctx, fc.addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create Flight client: %w", err)
	}
	fc.client = client
	return nil
}

func (fc *FlightClient) Close() error {
	if fc.client != nil {
		return fc.client.Close()
	}
	return nil
}

var errNotConnected = errors.New("client not connected, call Connect() first")

// List returns the names of the published sweeps.
func (fc *FlightClient) List(ctx context.Context) ([]string, error) {
	if fc.client == nil {
		return nil, errNotConnected
	}
	stream, err := fc.client.ListFlights(ctx, &flight.Criteria{})
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	var names []string
	for {
		info, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list flights: %w", err)
		}
		names = append(names, info.GetFlightDescriptor().GetPath()...)
	}
}

// Fetch streams the sweep published under name. The caller releases the
// returned records.
func (fc *FlightClient) Fetch(ctx context.Context, mem memory.Allocator, name string) ([]arrow.Record, error) {
	if fc.client == nil {
		return nil, errNotConnected
	}
	stream, err := fc.client.DoGet(ctx, &flight.Ticket{Ticket: []byte(name)})
	if err != nil {
		return nil, fmt.Errorf("do get %s: %w", name, err)
	}
	rdr, err := flight.NewRecordReader(stream, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer rdr.Release()

	var recs []arrow.Record
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := rdr.Err(); err != nil {
		for _, r := range recs {
			r.Release()
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return recs, nil
}
