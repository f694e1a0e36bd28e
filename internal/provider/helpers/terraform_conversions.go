// Package helpers converts between plain Go values and Terraform framework
// values for dynamic attributes and function arguments.
package helpers

import (
	"context"
	"fmt"
	"maps"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/types"
)

// elementValues is implemented by every collection value the framework defines.
type elementValues interface {
	Elements() []attr.Value
}

// TerraformValueToGo converts value to string, int64, float64, bool, []any or
// map[string]any. Null becomes nil; unknown values are an error.
func TerraformValueToGo(ctx context.Context, value attr.Value) (any, error) {
	if value.IsNull() {
		return nil, nil
	}
	if value.IsUnknown() {
		return nil, fmt.Errorf("cannot process unknown values")
	}

	switch v := value.(type) {
	case types.String:
		return v.ValueString(), nil
	case types.Int64:
		return v.ValueInt64(), nil
	case types.Float64:
		return v.ValueFloat64(), nil
	case types.Bool:
		return v.ValueBool(), nil
	case types.Number:
		bigFloat := v.ValueBigFloat()
		if bigFloat == nil {
			return nil, fmt.Errorf("number value is nil")
		}
		f, _ := bigFloat.Float64()
		return f, nil
	case types.Map:
		return attributesToGo(ctx, v.Elements())
	case types.Object:
		return attributesToGo(ctx, v.Attributes())
	case types.Dynamic:
		return TerraformValueToGo(ctx, v.UnderlyingValue())
	case elementValues:
		elements := v.Elements()
		result := make([]any, len(elements))
		for i, elem := range elements {
			goVal, err := TerraformValueToGo(ctx, elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			result[i] = goVal
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", value)
	}
}

func attributesToGo(ctx context.Context, attributes map[string]attr.Value) (map[string]any, error) {
	result := make(map[string]any, len(attributes))
	for name, value := range attributes {
		goVal, err := TerraformValueToGo(ctx, value)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		result[name] = goVal
	}
	return result, nil
}

// DynamicValueToMap converts a dynamic value holding an object or map to Go.
func DynamicValueToMap(ctx context.Context, value attr.Value) (map[string]any, error) {
	if value.IsNull() || value.IsUnknown() {
		return nil, fmt.Errorf("value cannot be null or unknown")
	}

	dynamicVal, ok := value.(types.Dynamic)
	if !ok {
		return nil, fmt.Errorf("expected dynamic value, got %T", value)
	}

	attributes, err := ExtractMapFromDynamic(ctx, dynamicVal)
	if err != nil {
		return nil, err
	}
	return attributesToGo(ctx, attributes)
}

// ExtractMapFromDynamic returns the attributes of a dynamic object, or the
// elements of a dynamic map.
func ExtractMapFromDynamic(_ context.Context, value types.Dynamic) (map[string]attr.Value, error) {
	switch v := value.UnderlyingValue().(type) {
	case types.Map:
		return v.Elements(), nil
	case types.Object:
		return maps.Clone(v.Attributes()), nil
	default:
		return nil, fmt.Errorf("expected object or map value, got %T", v)
	}
}

// GoValueToTerraform converts a Go value to a framework value. Maps become
// objects and slices become tuples, so mixed element types are allowed.
func GoValueToTerraform(ctx context.Context, value any) (attr.Value, error) {
	if value == nil {
		return types.StringNull(), nil
	}

	switch v := value.(type) {
	case string:
		return types.StringValue(v), nil
	case int:
		return types.Int64Value(int64(v)), nil
	case int64:
		return types.Int64Value(v), nil
	case float64:
		return types.Float64Value(v), nil
	case bool:
		return types.BoolValue(v), nil
	case []string:
		elements := make([]any, len(v))
		for i, s := range v {
			elements[i] = s
		}
		return GoValueToTerraform(ctx, elements)
	case map[string]any:
		attrTypes := make(map[string]attr.Type, len(v))
		attrValues := make(map[string]attr.Value, len(v))

		for key, val := range v {
			terraformVal, err := GoValueToTerraform(ctx, val)
			if err != nil {
				return nil, fmt.Errorf("failed to convert map element %s: %w", key, err)
			}
			attrValues[key] = terraformVal
			attrTypes[key] = terraformVal.Type(ctx)
		}

		obj, diags := types.ObjectValue(attrTypes, attrValues)
		if diags.HasError() {
			return nil, fmt.Errorf("failed to build object: %v", diags)
		}
		return obj, nil
	case []any:
		elements := make([]attr.Value, len(v))
		elementTypes := make([]attr.Type, len(v))

		for i, val := range v {
			terraformVal, err := GoValueToTerraform(ctx, val)
			if err != nil {
				return nil, fmt.Errorf("failed to convert list element %d: %w", i, err)
			}
			elements[i] = terraformVal
			elementTypes[i] = terraformVal.Type(ctx)
		}

		tuple, diags := types.TupleValue(elementTypes, elements)
		if diags.HasError() {
			return nil, fmt.Errorf("failed to build tuple: %v", diags)
		}
		return tuple, nil
	default:
		return nil, fmt.Errorf("unsupported Go type for conversion: %T", value)
	}
}
