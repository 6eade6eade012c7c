package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	WorkflowIDKey  = "workflow_id"
	PrincipalKey   = "principal"
	ServiceNameKey = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithWorkflowID(ctx context.Context, workflowID string) context.Context {
	return context.WithValue(ctx, WorkflowIDKey, workflowID)
}

func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func GetWorkflowID(ctx context.Context) string {
	if workflowID, ok := ctx.Value(WorkflowIDKey).(string); ok {
		return workflowID
	}
	return ""
}

func GetPrincipal(ctx context.Context) string {
	if principal, ok := ctx.Value(PrincipalKey).(string); ok {
		return principal
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}

	if workflowID := GetWorkflowID(ctx); workflowID != "" {
		fields = append(fields, "workflow_id", workflowID)
	}

	if principal := GetPrincipal(ctx); principal != "" {
		fields = append(fields, "principal", principal)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
