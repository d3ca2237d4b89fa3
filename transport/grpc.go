package transport

import (
	"encoding/json"
	"log"
	"net"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// jsonCodec lets the gRPC transport carry the same JSON Message envelope
// as the WebSocket transport instead of a separate protobuf schema,
// grounded on internal/api/grpc_service.go.
type jsonCodec struct{}

func (jsonCodec) Name() string                      { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ControlServer is the bidirectional command stream gRPC clients drive,
// mirroring the WebSocket's single duplex connection.
type ControlServer interface {
	Stream(ControlStreamServer) error
}

type UnimplementedControlServer struct{}

func (UnimplementedControlServer) Stream(ControlStreamServer) error {
	return status.Errorf(codes.Unimplemented, "method Stream not implemented")
}

type ControlStreamServer interface {
	Send(*Message) error
	Recv() (*Message, error)
	grpc.ServerStream
}

type controlStreamServer struct {
	grpc.ServerStream
}

func (x *controlStreamServer) Send(m *Message) error {
	return x.ServerStream.SendMsg(m)
}

func (x *controlStreamServer) Recv() (*Message, error) {
	m := new(Message)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func controlStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ControlServer).Stream(&controlStreamServer{stream})
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: "meetcore.Control",
	HandlerType: (*ControlServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       controlStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "transport/control.proto",
}

func RegisterControlServer(s *grpc.Server, srv ControlServer) {
	s.RegisterService(&controlServiceDesc, srv)
}

// grpcClient adapts a gRPC duplex stream to the transport.client interface
// the broadcaster uses, uniformly with wsClient.
type grpcClient struct {
	stream ControlStreamServer
}

func (c *grpcClient) Send(msg Message) error { return c.stream.Send(&msg) }
func (c *grpcClient) Close() error            { return nil }

// Stream implements ControlServer, replaying the same dispatch loop as
// handleWebSocket over a gRPC duplex stream instead of a WebSocket frame.
func (s *Server) Stream(stream ControlStreamServer) error {
	c := &grpcClient{stream: stream}
	s.addClient(c)
	defer s.removeClient(c)

	for {
		msg, err := stream.Recv()
		if err != nil {
			return nil
		}
		s.handle(c.Send, *msg)
	}
}

func (s *Server) startGRPC() {
	addr := s.GRPCAddr
	lis, err := listenGRPC(addr)
	if err != nil {
		log.Printf("transport: gRPC listener failed (%s): %v", addr, err)
		return
	}

	server := grpc.NewServer(
		grpc.Creds(insecure.NewCredentials()),
		grpc.ForceServerCodec(jsonCodec{}),
	)
	RegisterControlServer(server, s)

	log.Printf("transport: gRPC listening on %s", addr)
	if err := server.Serve(lis); err != nil {
		log.Printf("transport: gRPC server stopped: %v", err)
	}
}

func listenGRPC(addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "unix:"):
		path := strings.TrimPrefix(addr, "unix:")
		removeIfExists(path)
		return net.Listen("unix", path)
	case strings.HasPrefix(addr, "npipe:"):
		return listenPipe(strings.TrimPrefix(addr, "npipe:"))
	default:
		return net.Listen("tcp", addr)
	}
}

// removeIfExists clears a stale socket file from a prior unclean shutdown
// so the next listen doesn't fail with "address already in use".
func removeIfExists(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("transport: could not remove stale socket %s: %v", path, err)
	}
}
