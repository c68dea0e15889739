// Package protosource populates the catalog from protobuf descriptors:
// messages become types, services become types whose methods are the unary
// RPCs. When a gRPC client connection is supplied, RPC methods carry a real
// invocation binding built on dynamic messages, so a resolved method can be
// called against a live server. The resolution core itself owns no transport;
// this is one pluggable catalog source.
package protosource

import (
	"context"
	"fmt"
	"os"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/funvibe/dispatch/internal/catalog"
	"github.com/funvibe/dispatch/internal/typesys"
)

// Loader converts proto file descriptors into catalog types.
type Loader struct {
	// ImportPaths are the proto import roots for parsing .proto sources.
	ImportPaths []string

	// Conn, when set, backs RPC method invocation. Without it the loaded
	// methods are descriptor-only.
	Conn *grpc.ClientConn

	messages map[string]*typesys.TypeDescriptor
}

// LoadProto parses .proto source files and registers their messages and
// services.
func (l *Loader) LoadProto(reg *catalog.Registry, files ...string) error {
	parser := protoparse.Parser{ImportPaths: l.ImportPaths}
	if len(parser.ImportPaths) == 0 {
		parser.ImportPaths = []string{"."}
	}
	fds, err := parser.ParseFiles(files...)
	if err != nil {
		return fmt.Errorf("parsing proto: %w", err)
	}
	for _, fd := range fds {
		l.registerFile(reg, fd)
	}
	return nil
}

// LoadDescriptorSet registers the contents of a compiled FileDescriptorSet
// (as produced by protoc --descriptor_set_out).
func (l *Loader) LoadDescriptorSet(reg *catalog.Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading descriptor set: %w", err)
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("unmarshaling descriptor set: %w", err)
	}
	fds, err := desc.CreateFileDescriptorsFromSet(&set)
	if err != nil {
		return fmt.Errorf("building descriptors: %w", err)
	}
	for _, fd := range fds {
		l.registerFile(reg, fd)
	}
	return nil
}

func (l *Loader) registerFile(reg *catalog.Registry, fd *desc.FileDescriptor) {
	if l.messages == nil {
		l.messages = make(map[string]*typesys.TypeDescriptor)
	}
	for _, md := range fd.GetMessageTypes() {
		l.registerMessage(reg, md)
	}
	for _, sd := range fd.GetServices() {
		l.registerService(reg, sd)
	}
}

func (l *Loader) registerMessage(reg *catalog.Registry, md *desc.MessageDescriptor) *typesys.TypeDescriptor {
	fqn := md.GetFullyQualifiedName()
	if d, ok := l.messages[fqn]; ok {
		return d
	}
	d := &typesys.TypeDescriptor{Name: fqn, Base: catalog.Object}
	l.messages[fqn] = d

	// A zero-argument constructor producing the empty field map keeps message
	// types constructible through the ordinary resolution path.
	ctor := &typesys.MethodDescriptor{
		Name:          "New",
		Declaring:     d,
		IsConstructor: true,
		IsPublic:      true,
		Return:        d,
		Invoke: func(_ any, _ []*typesys.TypeDescriptor, _ []any) (any, error) {
			return map[string]any{}, nil
		},
	}
	reg.Register(d, ctor)
	return d
}

func (l *Loader) registerService(reg *catalog.Registry, sd *desc.ServiceDescriptor) {
	d := &typesys.TypeDescriptor{Name: sd.GetFullyQualifiedName(), Base: catalog.Object}
	var methods []*typesys.MethodDescriptor
	for _, md := range sd.GetMethods() {
		if md.IsClientStreaming() || md.IsServerStreaming() {
			// Streaming RPCs have no single-request call shape to resolve.
			continue
		}
		in := l.registerMessage(reg, md.GetInputType())
		out := l.registerMessage(reg, md.GetOutputType())
		methods = append(methods, &typesys.MethodDescriptor{
			Name:      md.GetName(),
			Declaring: d,
			IsStatic:  true,
			IsPublic:  true,
			Params: []*typesys.ParamDescriptor{
				{Name: "request", Type: in},
			},
			Return:     out,
			Attributes: []string{"proto.unary"},
			Invoke:     l.rpcInvoker(sd, md),
		})
	}
	reg.Register(d, methods...)
}

// rpcInvoker builds the invocation binding for a unary RPC: the single bound
// argument is a field map, converted into a dynamic request message.
func (l *Loader) rpcInvoker(sd *desc.ServiceDescriptor, md *desc.MethodDescriptor) typesys.InvokeFunc {
	return func(_ any, _ []*typesys.TypeDescriptor, args []any) (any, error) {
		if l.Conn == nil {
			return nil, fmt.Errorf("no client connection for %s", sd.GetFullyQualifiedName())
		}
		req := dynamic.NewMessage(md.GetInputType())
		if len(args) == 1 && args[0] != nil {
			fields, ok := args[0].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("request for %s must be a field map", md.GetName())
			}
			if err := setFields(req, md.GetInputType(), fields); err != nil {
				return nil, fmt.Errorf("building request: %w", err)
			}
		}
		resp := dynamic.NewMessage(md.GetOutputType())
		path := fmt.Sprintf("/%s/%s", sd.GetFullyQualifiedName(), md.GetName())
		if err := l.Conn.Invoke(context.Background(), path, req, resp); err != nil {
			return nil, fmt.Errorf("RPC failed: %w", err)
		}
		return messageToMap(resp, md.GetOutputType()), nil
	}
}

func setFields(msg *dynamic.Message, md *desc.MessageDescriptor, fields map[string]any) error {
	for name, value := range fields {
		fd := md.FindFieldByName(name)
		if fd == nil {
			return fmt.Errorf("message %s has no field %q", md.GetFullyQualifiedName(), name)
		}
		if err := msg.TrySetFieldByName(name, coerceField(fd, value)); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}

// coerceField adjusts JSON-decoded values (float64 numbers) to the field's
// wire type before handing them to the dynamic message.
func coerceField(fd *desc.FieldDescriptor, v any) any {
	f, isFloat := v.(float64)
	if !isFloat {
		return v
	}
	switch fd.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32,
		descriptorpb.FieldDescriptorProto_TYPE_SINT32,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		return int32(f)
	case descriptorpb.FieldDescriptorProto_TYPE_INT64,
		descriptorpb.FieldDescriptorProto_TYPE_SINT64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		return int64(f)
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		return uint32(f)
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		return uint64(f)
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		return float32(f)
	default:
		return v
	}
}

func messageToMap(msg *dynamic.Message, md *desc.MessageDescriptor) map[string]any {
	out := make(map[string]any, len(md.GetFields()))
	for _, fd := range md.GetFields() {
		v, err := msg.TryGetFieldByName(fd.GetName())
		if err != nil {
			continue
		}
		if nested, ok := v.(*dynamic.Message); ok {
			v = messageToMap(nested, fd.GetMessageType())
		}
		out[fd.GetName()] = v
	}
	return out
}
