package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/do/v2"

	"github.com/inkwellapp/inkwell-server/internal/bus"
	"github.com/inkwellapp/inkwell-server/internal/logger"
	"github.com/inkwellapp/inkwell-server/internal/sse"
)

// BusHandle wraps the event bus with shutdown capability.
type BusHandle struct {
	*bus.Bus
}

// Shutdown implements do.Shutdownable. Closing the bus closes every
// subscriber channel, which unwinds the SSE relay and any in-flight
// GraphQL subscriptions.
func (h *BusHandle) Shutdown() error {
	h.Bus.Close()
	return nil
}

// ProvideEventBus provides the in-process event bus.
func ProvideEventBus(i do.Injector) (*BusHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return &BusHandle{Bus: bus.New(log.Logger)}, nil
}

// SSEManagerHandle wraps the SSE manager with its relay goroutine for
// lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	select {
	case <-h.done:
		return nil
	case <-time.After(shutdownTimeout):
		return fmt.Errorf("sse manager did not stop within %s", shutdownTimeout)
	}
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	busHandle := do.MustInvoke[*BusHandle](i)

	manager := sse.NewManager(busHandle.Bus, log.Logger)

	// Run the bus-to-client relay in the background.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := manager.Run(ctx); err != nil {
			log.Error("SSE manager stopped with error", "error", err)
		}
	}()

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
		done:    done,
	}, nil
}
