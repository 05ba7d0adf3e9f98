package control

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"

	"github.com/yichen11818/NeteaseTSBot/bridge/voicepb"
)

const serviceName = "ts3voicebridge.Control"

// Server wraps a real grpc.Server configured with the JSON codec (see
// codec.go) and the hand-registered ServiceDesc below.
type Server struct {
	grpcServer *grpc.Server
	logger     *slog.Logger
}

// NewServer builds a grpc.Server bound to svc. Serve starts accepting
// connections; it blocks until Stop is called or the listener errors.
func NewServer(svc *Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	s.RegisterService(&serviceDesc, svc)
	return &Server{grpcServer: s, logger: logger}
}

// Serve listens on addr and blocks until the server stops.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("control listen: %w", err)
	}
	s.logger.Info("control server listening", "addr", addr)
	return s.grpcServer.Serve(lis)
}

// Stop gracefully stops the gRPC server, letting in-flight RPCs (including
// open SubscribeEvents streams) finish.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

// -- hand-authored ServiceDesc, the shape protoc-gen-go-grpc would emit --

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: pingHandler},
		{MethodName: "Play", Handler: playHandler},
		{MethodName: "Pause", Handler: pauseHandler},
		{MethodName: "Resume", Handler: resumeHandler},
		{MethodName: "Stop", Handler: stopHandler},
		{MethodName: "Skip", Handler: skipHandler},
		{MethodName: "SetVolume", Handler: setVolumeHandler},
		{MethodName: "SetAudioFx", Handler: setAudioFxHandler},
		{MethodName: "GetAudioFx", Handler: getAudioFxHandler},
		{MethodName: "SetClientDescription", Handler: setClientDescriptionHandler},
		{MethodName: "SendNotice", Handler: sendNoticeHandler},
		{MethodName: "GetStatus", Handler: getStatusHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SubscribeEvents",
			Handler:       subscribeEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "control.proto",
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(voicepb.PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Ping"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).Ping(ctx, req.(*voicepb.PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func playHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(voicepb.PlayRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).Play(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Play"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).Play(ctx, req.(*voicepb.PlayRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pauseHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(voicepb.EmptyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).Pause(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Pause"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).Pause(ctx, req.(*voicepb.EmptyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func resumeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(voicepb.EmptyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).Resume(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Resume"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).Resume(ctx, req.(*voicepb.EmptyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func stopHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(voicepb.EmptyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).Stop(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Stop"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).Stop(ctx, req.(*voicepb.EmptyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func skipHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(voicepb.EmptyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).Skip(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Skip"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).Skip(ctx, req.(*voicepb.EmptyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func setVolumeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(voicepb.SetVolumeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).SetVolume(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SetVolume"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).SetVolume(ctx, req.(*voicepb.SetVolumeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func setAudioFxHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(voicepb.SetAudioFxRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).SetAudioFx(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SetAudioFx"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).SetAudioFx(ctx, req.(*voicepb.SetAudioFxRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getAudioFxHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(voicepb.EmptyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).GetAudioFx(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetAudioFx"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).GetAudioFx(ctx, req.(*voicepb.EmptyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func setClientDescriptionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(voicepb.SetClientDescriptionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).SetClientDescription(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SetClientDescription"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).SetClientDescription(ctx, req.(*voicepb.SetClientDescriptionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func sendNoticeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(voicepb.SendNoticeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).SendNotice(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SendNotice"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).SendNotice(ctx, req.(*voicepb.SendNoticeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(voicepb.EmptyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Service).GetStatus(ctx, req.(*voicepb.EmptyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeEventsHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(voicepb.SubscribeEventsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(*Service).SubscribeEvents(stream.Context(), req, func(ev *voicepb.Event) error {
		return stream.SendMsg(ev)
	})
}
