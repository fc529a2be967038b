package tools

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/arclane/conduit/pkg/tool"
)

// Handshake identifies the plugin protocol version conduit speaks, the way
// any hashicorp/go-plugin host pins a magic cookie so a stray binary on
// PATH can't be mistaken for a tool plugin.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "CONDUIT_TOOL_PLUGIN",
	MagicCookieValue: "conduit",
}

// pluginServiceDesc is a hand-rolled grpc.ServiceDesc for the single-method
// tool plugin protocol. It reuses structpb.Struct (already a generated
// proto.Message shipped by google.golang.org/protobuf) as both request and
// response payload instead of generating a bespoke .pb.go — the protocol
// is one call wide and doesn't warrant a protoc build step.
var pluginServiceDesc = grpc.ServiceDesc{
	ServiceName: "conduit.tool.Plugin",
	HandlerType: (*pluginServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(pluginServer).Execute(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/conduit.tool.Plugin/Execute"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(pluginServer).Execute(ctx, req.(*structpb.Struct))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "conduit/tool_plugin.proto",
}

// pluginServer is implemented by the out-of-process plugin binary.
type pluginServer interface {
	Execute(ctx context.Context, args *structpb.Struct) (*structpb.Struct, error)
}

// pluginClient is the host-side stub generated, by hand, over
// pluginServiceDesc.
type pluginClient struct{ cc grpc.ClientConnInterface }

func (c *pluginClient) Execute(ctx context.Context, args *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, "/conduit.tool.Plugin/Execute", args, out)
	return out, err
}

// GRPCToolPlugin adapts a remote tool implementation to go-plugin's
// plugin.GRPCPlugin, grounded on pkg/plugins/grpc's out-of-process
// component host pattern, generalized from dependency-injected components
// to tool.Handler specifically (§1.2 names go-plugin for "out-of-process
// tool providers over gRPC").
type GRPCToolPlugin struct {
	goplugin.NetRPCUnsupportedPlugin
	Def tool.Def
}

func (p *GRPCToolPlugin) GRPCServer(broker *goplugin.GRPCBroker, s *grpc.Server) error {
	return fmt.Errorf("GRPCToolPlugin: GRPCServer is implemented by the plugin binary, not the host")
}

func (p *GRPCToolPlugin) GRPCClient(ctx context.Context, broker *goplugin.GRPCBroker, cc *grpc.ClientConn) (any, error) {
	return &RemoteHandler{def: p.Def, client: &pluginClient{cc: cc}}, nil
}

// RemoteHandler is a tool.Handler backed by an out-of-process plugin
// reached over grpc. Its Definition is fixed at host-side configuration
// time (not queried from the plugin), since the host must know what to
// advertise to the provider before the plugin process is even launched.
type RemoteHandler struct {
	def    tool.Def
	client *pluginClient
}

func (r *RemoteHandler) Definition() tool.Def { return r.def }

func (r *RemoteHandler) Execute(ctx context.Context, ectx tool.ExecContext, args map[string]any) (string, error) {
	req, err := structpb.NewStruct(args)
	if err != nil {
		return "", fmt.Errorf("plugin %s: marshal args: %w", r.def.Name, err)
	}
	resp, err := r.client.Execute(ctx, req)
	if err != nil {
		return "", fmt.Errorf("plugin %s: %w", r.def.Name, err)
	}
	out := resp.AsMap()
	content, _ := out["content"].(string)
	if isErr, _ := out["is_error"].(bool); isErr {
		return "", fmt.Errorf("plugin %s: %s", r.def.Name, content)
	}
	return content, nil
}

// Launch starts cmd as a go-plugin subprocess and returns a tool.Handler
// proxying to it over grpc. Callers are responsible for calling the
// returned kill func once the handler is no longer needed.
func Launch(def tool.Def, cmd *exec.Cmd, logger hclog.Logger) (handler tool.Handler, kill func(), err error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         goplugin.PluginSet{"tool": &GRPCToolPlugin{Def: def}},
		Cmd:             cmd,
		AllowedProtocols: []goplugin.Protocol{
			goplugin.ProtocolGRPC,
		},
		Logger: logger,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("plugin %s: %w", def.Name, err)
	}
	raw, err := rpcClient.Dispense("tool")
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("plugin %s: dispense: %w", def.Name, err)
	}
	h, ok := raw.(tool.Handler)
	if !ok {
		client.Kill()
		return nil, nil, fmt.Errorf("plugin %s: unexpected dispensed type %T", def.Name, raw)
	}
	return h, client.Kill, nil
}
