package packrat

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for converter lifecycle events.
var (
	SignalSynthesisStart    = capitan.NewSignal("packrat.synthesis.start", "Converter synthesis beginning for a type")
	SignalSynthesisComplete = capitan.NewSignal("packrat.synthesis.complete", "Converter synthesis finished for a type")
	SignalEncodeStart       = capitan.NewSignal("packrat.encode.start", "Encode operation beginning")
	SignalEncodeComplete    = capitan.NewSignal("packrat.encode.complete", "Encode operation finished")
	SignalDecodeStart       = capitan.NewSignal("packrat.decode.start", "Decode operation beginning")
	SignalDecodeComplete    = capitan.NewSignal("packrat.decode.complete", "Decode operation finished")
	SignalLayoutSelected    = capitan.NewSignal("packrat.array.layout_selected", "Array converter chose map or array wire shape")
)

// Keys for typed event data.
var (
	KeyTypeName     = capitan.NewStringKey("type_name")
	KeyDuration     = capitan.NewDurationKey("duration")
	KeyError        = capitan.NewErrorKey("error")
	KeyPropertyCnt  = capitan.NewIntKey("property_count")
	KeySize         = capitan.NewIntKey("size")
	KeyLayout       = capitan.NewStringKey("layout")
)

func emitSynthesisStart(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalSynthesisStart, KeyTypeName.Field(typeName))
}

func emitSynthesisComplete(ctx context.Context, typeName string, duration time.Duration, propertyCount int, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
		KeyPropertyCnt.Field(propertyCount),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalSynthesisComplete, fields...)
		return
	}
	capitan.Emit(ctx, SignalSynthesisComplete, fields...)
}

func emitEncodeStart(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalEncodeStart, KeyTypeName.Field(typeName))
}

func emitEncodeComplete(ctx context.Context, typeName string, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalEncodeComplete, fields...)
		return
	}
	capitan.Emit(ctx, SignalEncodeComplete, fields...)
}

func emitDecodeStart(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalDecodeStart, KeyTypeName.Field(typeName))
}

func emitDecodeComplete(ctx context.Context, typeName string, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDecodeComplete, fields...)
		return
	}
	capitan.Emit(ctx, SignalDecodeComplete, fields...)
}

func emitLayoutSelected(ctx context.Context, typeName, layout string) {
	capitan.Emit(ctx, SignalLayoutSelected,
		KeyTypeName.Field(typeName),
		KeyLayout.Field(layout),
	)
}

// layoutCtx returns sc's cancellation context, or context.Background()
// when sc carries none, so capitan.Emit always receives a non-nil context.
func layoutCtx(sc *SerializationContext) context.Context {
	if sc.Ctx != nil {
		return sc.Ctx
	}
	return context.Background()
}
