package logging

import (
	"context"
	"log/slog"
)

type fieldsKey struct{}

// fields are the attributes a context contributes to every record.
type fields struct {
	command   string
	component string
	project   string
}

func fieldsFrom(ctx context.Context) fields {
	if ctx == nil {
		return fields{}
	}
	f, _ := ctx.Value(fieldsKey{}).(fields)
	return f
}

func withFields(ctx context.Context, update func(*fields)) context.Context {
	f := fieldsFrom(ctx)
	update(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithCommand records the cobra command path, e.g. "portabase db add".
func WithCommand(ctx context.Context, command string) context.Context {
	return withFields(ctx, func(f *fields) { f.command = command })
}

// WithComponent records the subsystem emitting records ("compose", "selfupdate", ...).
func WithComponent(ctx context.Context, component string) context.Context {
	return withFields(ctx, func(f *fields) { f.component = component })
}

// WithProject records the compose project a command acts on.
func WithProject(ctx context.Context, project string) context.Context {
	return withFields(ctx, func(f *fields) { f.project = project })
}

func (f fields) attrs() []slog.Attr {
	var attrs []slog.Attr
	if f.command != "" {
		attrs = append(attrs, slog.String("command", f.command))
	}
	if f.component != "" {
		attrs = append(attrs, slog.String("component", f.component))
	}
	if f.project != "" {
		attrs = append(attrs, slog.String("project", f.project))
	}
	return attrs
}
