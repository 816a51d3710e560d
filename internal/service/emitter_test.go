package service_test

import (
	"context"
	"testing"

	"hotelmap/internal/domain"
	"hotelmap/internal/service"
)

func TestMockEmitter_Named(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, service.EventMapChanged, domain.MapView{})
	m.Emit(ctx, service.EventMapNotice, "saved")
	m.Emit(ctx, service.EventMapChanged, domain.MapView{})

	if got := len(m.Named(service.EventMapChanged)); got != 2 {
		t.Errorf("map:changed events = %d, want 2", got)
	}
	notices := m.Named(service.EventMapNotice)
	if len(notices) != 1 || notices[0].Data != "saved" {
		t.Errorf("notices = %+v", notices)
	}
	if len(m.Named(service.EventMarkersLoaded)) != 0 {
		t.Error("unexpected markers:loaded event")
	}

	m.Reset()
	if len(m.Events) != 0 {
		t.Errorf("events after Reset = %d", len(m.Events))
	}
}

func TestNoopEmitter(t *testing.T) {
	var e service.EventEmitter = service.NoopEmitter{}
	e.Emit(context.Background(), service.EventMapNotice, nil)
}
