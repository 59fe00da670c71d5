// Package cmd provides common initialization for the binaries.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/luisscruza/optiflow-sub005/pkg/channels/gochannel"
	"github.com/luisscruza/optiflow-sub005/pkg/channels/kafka"
	"github.com/luisscruza/optiflow-sub005/pkg/eventbus"
)

// NewEventBus creates the event bus for the given provider. The
// gochannel provider is in-process only and suits single-binary local
// runs; production deployments use kafka.
func NewEventBus(provider, serviceName string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create gochannel pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
