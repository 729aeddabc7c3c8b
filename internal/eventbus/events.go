package eventbus

import (
	"context"
	"fmt"

	"github.com/annel0/gridworld/internal/geo"
	"github.com/annel0/gridworld/internal/logging"
	"github.com/annel0/gridworld/internal/world"
)

// Типы событий планировщика
const (
	EventNeedCluster   = "NeedCluster"
	EventOriginChanged = "OriginChanged"

	SourceGeo = "geo"
)

// Приоритеты: запрос кластера можно потерять (повторится на следующем проходе),
// смену начала координат — нельзя.
const (
	priorityNeedCluster   = 3
	priorityOriginChanged = 7
)

// NeedClusterPayload — нагрузка события NeedCluster
type NeedClusterPayload struct {
	H int64 `json:"h"`
	V int64 `json:"v"`
}

// OriginChangePayload — нагрузка события OriginChanged
type OriginChangePayload struct {
	OldH    int64  `json:"old_h"`
	OldV    int64  `json:"old_v"`
	NewH    int64  `json:"new_h"`
	NewV    int64  `json:"new_v"`
	Version uint64 `json:"version"`
}

// NewNeedClusterEnvelope упаковывает запрос кластера
func NewNeedClusterEnvelope(pos world.ClusterPos) (*Envelope, error) {
	return NewEnvelope(SourceGeo, EventNeedCluster, priorityNeedCluster, NeedClusterPayload{H: pos.H, V: pos.V})
}

// NewOriginChangeEnvelope упаковывает смену начала координат
func NewOriginChangeEnvelope(c geo.OriginChange) (*Envelope, error) {
	return NewEnvelope(SourceGeo, EventOriginChanged, priorityOriginChanged, OriginChangePayload{
		OldH:    c.Old.H,
		OldV:    c.Old.V,
		NewH:    c.New.H,
		NewV:    c.New.V,
		Version: c.Version,
	})
}

// DecodeNeedCluster извлекает позицию из события NeedCluster
func DecodeNeedCluster(ev *Envelope) (world.ClusterPos, error) {
	if ev.EventType != EventNeedCluster {
		return world.ClusterPos{}, fmt.Errorf("ожидалось событие %s, получено %s", EventNeedCluster, ev.EventType)
	}
	var p NeedClusterPayload
	if err := ev.Decode(&p); err != nil {
		return world.ClusterPos{}, err
	}
	return world.ClusterPos{H: p.H, V: p.V}, nil
}

// DecodeOriginChange извлекает смену начала координат из события OriginChanged
func DecodeOriginChange(ev *Envelope) (geo.OriginChange, error) {
	if ev.EventType != EventOriginChanged {
		return geo.OriginChange{}, fmt.Errorf("ожидалось событие %s, получено %s", EventOriginChanged, ev.EventType)
	}
	var p OriginChangePayload
	if err := ev.Decode(&p); err != nil {
		return geo.OriginChange{}, err
	}
	return geo.OriginChange{
		Old:     geo.Origin{H: p.OldH, V: p.OldV},
		New:     geo.Origin{H: p.NewH, V: p.NewV},
		Version: p.Version,
	}, nil
}

// Bridge пересылает сигналы планировщика в шину. Возвращает функцию отписки.
func Bridge(ctx context.Context, bus EventBus, mgr *geo.Manager) (unsubscribe func()) {
	log := logging.GetEventBusLogger()

	publish := func(ev *Envelope, err error) {
		if err != nil {
			log.Error("Ошибка создания события: %v", err)
			return
		}
		if err := bus.Publish(ctx, ev); err != nil {
			log.Warn("Событие %s не опубликовано: %v", ev.EventType, err)
		}
	}

	offNeed := mgr.NeedCluster().Subscribe(func(pos world.ClusterPos) {
		publish(NewNeedClusterEnvelope(pos))
	})
	offOrigin := mgr.OriginChanged().Subscribe(func(c geo.OriginChange) {
		publish(NewOriginChangeEnvelope(c))
	})

	return func() {
		offNeed()
		offOrigin()
	}
}

// SubscribeNeedCluster вызывает fn для каждого события NeedCluster из шины
func SubscribeNeedCluster(ctx context.Context, bus EventBus, fn func(world.ClusterPos)) (Subscription, error) {
	log := logging.GetEventBusLogger()
	return bus.Subscribe(ctx, Filter{Types: []string{EventNeedCluster}}, func(_ context.Context, ev *Envelope) {
		pos, err := DecodeNeedCluster(ev)
		if err != nil {
			log.Warn("%v", err)
			return
		}
		fn(pos)
	})
}
