// Rangesum uses flags and a single config file for configuration.
// A config file is stored in .txtpb format and contains the values that can be set via flags. Its schema isn't
// written by hand: every registered flag becomes an optional field of a `Config` message, named after the flag and
// typed after the flag's value. A flag added anywhere in the binary is configurable without touching this package.

package config

import (
	"flag"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// skippedConfigFlags is the list of command line flags that can't be set from the config file.
var skippedConfigFlags = []string{"print_version", "config_file"}

// configFieldType maps the value of `f` onto a protobuf scalar type.
func configFieldType(f *flag.Flag) (descriptorpb.FieldDescriptorProto_Type, error) {
	getter, ok := f.Value.(flag.Getter)
	if !ok {
		return 0, fmt.Errorf("flag '%s' of type %T doesn't implement flag.Getter", f.Name, f.Value)
	}
	switch getter.Get().(type) {
	case bool:
		return descriptorpb.FieldDescriptorProto_TYPE_BOOL, nil
	case int, int64:
		return descriptorpb.FieldDescriptorProto_TYPE_INT64, nil
	case uint, uint64:
		return descriptorpb.FieldDescriptorProto_TYPE_UINT64, nil
	case float64:
		return descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, nil
	case string, time.Duration: // Durations are written as strings, e.g. "1m30s".
		return descriptorpb.FieldDescriptorProto_TYPE_STRING, nil
	default:
		return 0, fmt.Errorf("flag '%s' has unsupported value type %T", f.Name, getter.Get())
	}
}

// configurableFlags visits every flag that belongs in the config schema. Flags that can't be represented are
// reported in the returned errors and left out.
func configurableFlags(visit func(f *flag.Flag, fieldType descriptorpb.FieldDescriptorProto_Type)) []error {
	var errs []error
	flag.VisitAll(func(f *flag.Flag) {
		if strings.HasPrefix(f.Name, "test.") { // Skip test flags.
			return
		}
		if slices.Contains(skippedConfigFlags, f.Name) {
			return
		}
		if !protoreflect.Name(f.Name).IsValid() {
			errs = append(errs, fmt.Errorf("flag '%s' isn't a valid protobuf field name", f.Name))
			return
		}
		fieldType, err := configFieldType(f)
		if err != nil {
			errs = append(errs, err)
			return
		}
		visit(f, fieldType)
	})
	return errs
}

// buildConfigDescriptor derives the `Config` message from the registered flags.
func buildConfigDescriptor() (protoreflect.MessageDescriptor, error) {
	var fields []*descriptorpb.FieldDescriptorProto
	// VisitAll goes in lexicographical order, so field numbers are stable for a given set of flags.
	_ = configurableFlags(func(f *flag.Flag, fieldType descriptorpb.FieldDescriptorProto_Type) {
		fields = append(fields, &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(f.Name),
			Number: proto.Int32(int32(len(fields) + 1)),
			Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:   fieldType.Enum(),
		})
	})
	fileProto := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("rangesum/config.proto"),
		Package: proto.String("rangesum"),
		Syntax:  proto.String("proto2"), // Explicit presence: only fields written in the file override flags.
		MessageType: []*descriptorpb.DescriptorProto{{
			Name:  proto.String("Config"),
			Field: fields,
		}},
	}
	file, err := protodesc.NewFile(fileProto, new(protoregistry.Files))
	if err != nil {
		return nil, fmt.Errorf("failed to build config descriptor: %w", err)
	}
	return file.Messages().ByName("Config"), nil
}

// protobufValueToString converts a protobuf field value to its string representation suitable for flag setting.
func protobufValueToString(fd protoreflect.FieldDescriptor, v protoreflect.Value) (string, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return strconv.FormatBool(v.Bool()), nil
	case protoreflect.Int64Kind:
		return strconv.FormatInt(v.Int(), 10), nil
	case protoreflect.Uint64Kind:
		return strconv.FormatUint(v.Uint(), 10), nil
	case protoreflect.DoubleKind:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64), nil
	case protoreflect.StringKind:
		return v.String(), nil
	default:
		return "", fmt.Errorf("unsupported kind: %v", fd.Kind())
	}
}

// collectConfigFlags collects the flag values written in the given config message.
func collectConfigFlags(m protoreflect.Message) (map[ /*flagName*/ string] /*flagValue*/ string, error) {
	flags := make(map[string]string)
	var err error
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		stringValue, convErr := protobufValueToString(fd, v)
		if convErr != nil {
			err = fmt.Errorf("failed to convert %s: %w", fd.FullName(), convErr)
			return false
		}
		flags[string(fd.Name())] = stringValue
		return true
	})
	return flags, err
}

// CollectUnsupportedFlags returns one error per registered flag that can't be set from the config file.
func CollectUnsupportedFlags() []error {
	return configurableFlags(func(*flag.Flag, descriptorpb.FieldDescriptorProto_Type) {})
}
