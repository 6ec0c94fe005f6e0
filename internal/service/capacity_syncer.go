package service

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/tourism-booking/internal/repository"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
	"go.uber.org/zap"
)

// CapacitySyncer loads a resource's remaining capacity into a counter that
// keeps its own copy of availability
type CapacitySyncer interface {
	// Sync loads the capacity of resourceID (uses single-flight)
	Sync(ctx context.Context, resourceID string) error
}

// capacityInitializer is implemented by counters that can seed a value
// without overwriting one written by a concurrent process
type capacityInitializer interface {
	InitCapacity(ctx context.Context, resourceID string, available int64) (bool, error)
}

// capacitySyncer implements CapacitySyncer from the resource repository
type capacitySyncer struct {
	resources repository.ResourceRepository
	counter   repository.CapacityCounter
	sfGroup   singleflight.Group
	log       *logger.Logger
}

// NewCapacitySyncer creates a new capacity syncer
func NewCapacitySyncer(resources repository.ResourceRepository, counter repository.CapacityCounter) CapacitySyncer {
	return &capacitySyncer{
		resources: resources,
		counter:   counter,
		log:       logger.Get().Named("capacity-syncer"),
	}
}

// Sync computes capacity minus the quantity still held by bookings and seeds
// the counter with it. Concurrent calls for one resource share a single load.
func (s *capacitySyncer) Sync(ctx context.Context, resourceID string) error {
	_, err, shared := s.sfGroup.Do(resourceID, func() (interface{}, error) {
		return nil, s.doSync(ctx, resourceID)
	})
	if shared {
		s.log.Debug("capacity sync shared", zap.String("resource_id", resourceID))
	}
	return err
}

func (s *capacitySyncer) doSync(ctx context.Context, resourceID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.capacity.sync")
	defer span.End()
	span.SetAttributes(attribute.String("resource_id", resourceID))

	resource, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	held, err := s.resources.HeldQuantity(ctx, resourceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to sum held quantity: %w", err)
	}

	available := int64(resource.Capacity) - held
	if available < 0 {
		available = 0
	}
	span.SetAttributes(attribute.Int64("available", available))

	if init, ok := s.counter.(capacityInitializer); ok {
		created, err := init.InitCapacity(ctx, resourceID, available)
		if err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		if created {
			s.log.Info("capacity loaded", zap.String("resource_id", resourceID), zap.Int64("available", available))
		}
		return nil
	}

	if err := s.counter.SetCapacity(ctx, resourceID, available); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.log.Info("capacity loaded", zap.String("resource_id", resourceID), zap.Int64("available", available))
	return nil
}
