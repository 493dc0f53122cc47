package keel_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bft-labs/keel/pkg/keel"
)

// ExampleNew supervises a uvicorn process until SIGTERM.
func ExampleNew() {
	cfg := keel.Config{
		Command: []string{"uvicorn", "src.main:app", "--host", "0.0.0.0", "--port", "8080"},
		Dir:     "/app",
		Env:     []string{"DATA_DIR=/app/data"},
		UID:     999,
		GID:     999,
	}

	k, err := keel.New(cfg)
	if err != nil {
		fmt.Printf("failed to create keel: %v\n", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := k.Start(ctx); err != nil {
		fmt.Printf("failed to start: %v\n", err)
		return
	}
	if err := k.Wait(); errors.Is(err, keel.ErrServiceExited) {
		fmt.Println("service exited on its own")
	}
}

// ExampleConfig_Validate shows that the service never runs as root.
func ExampleConfig_Validate() {
	cfg := keel.Config{Command: []string{"uvicorn", "src.main:app"}}
	cfg.SetDefaults()

	err := cfg.Validate()
	fmt.Println(errors.Is(err, keel.ErrPrivilegedIdentity))
	// Output: true
}

// Example_withEventHandler logs health transitions.
func Example_withEventHandler() {
	handler := &healthLogger{}

	_, err := keel.New(keel.Config{
		Command: []string{"uvicorn", "src.main:app"},
		UID:     999,
		GID:     999,
	}, keel.WithEventHandler(handler))
	fmt.Println(err)
	// Output: <nil>
}

type healthLogger struct {
	keel.BaseEventHandler
}

func (healthLogger) OnHealthChange(e keel.HealthChangeEvent) {
	fmt.Printf("health: %s -> %s\n", e.Previous, e.Current)
}
