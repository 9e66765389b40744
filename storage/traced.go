package storage

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("bom-buddy/storage")

type tracedKV struct {
	KV
	driver string
}

// Traced wraps kv so that every Get/Set/Delete/Lock runs in its own span.
func Traced(kv KV, driver string) KV {
	if _, ok := kv.(*tracedKV); ok {
		return kv
	}
	return &tracedKV{KV: kv, driver: driver}
}

func (t *tracedKV) start(ctx context.Context, op string, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "kv."+op, trace.WithAttributes(
		attribute.String("kv.driver", t.driver),
		attribute.String("kv.key", key),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *tracedKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := t.start(ctx, "get", key)
	data, ok, err := t.KV.Get(ctx, key)
	span.SetAttributes(attribute.Bool("kv.found", ok), attribute.Int("kv.bytes", len(data)))
	endSpan(span, err)
	return data, ok, err
}

func (t *tracedKV) Set(ctx context.Context, key string, value []byte) error {
	ctx, span := t.start(ctx, "set", key)
	span.SetAttributes(attribute.Int("kv.bytes", len(value)))
	err := t.KV.Set(ctx, key, value)
	endSpan(span, err)
	return err
}

func (t *tracedKV) Delete(ctx context.Context, key string) error {
	ctx, span := t.start(ctx, "delete", key)
	err := t.KV.Delete(ctx, key)
	endSpan(span, err)
	return err
}

func (t *tracedKV) Lock(ctx context.Context, key string) (func(), error) {
	ctx, span := t.start(ctx, "lock", key)
	unlock, err := t.KV.Lock(ctx, key)
	endSpan(span, err)
	return unlock, err
}
