package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingPlugin struct {
	order *[]string
}

func (p countingPlugin) Build(app *App) {
	app.AddSystem("first", func(*App) { *p.order = append(*p.order, "first") })
	app.AddSystem("second", func(*App) { *p.order = append(*p.order, "second") })
}

func TestTickRunsCommandsThenSystemsInOrder(t *testing.T) {
	var order []string
	app := NewApp().AddPlugin(countingPlugin{order: &order})
	app.Send(func(*App) { order = append(order, "command") })

	app.Tick()

	want := []string{"command", "first", "second"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if app.Ticks() != 1 {
		t.Fatalf("Ticks() = %d, want 1", app.Ticks())
	}
}

func TestSendFromManyGoroutines(t *testing.T) {
	app := NewApp()
	count := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.Send(func(*App) { count++ })
		}()
	}
	wg.Wait()
	app.Tick()

	if count != 50 {
		t.Fatalf("count = %d, want 50", count)
	}
}

func TestRunStopsOnExit(t *testing.T) {
	app := NewApp()
	app.AddSystem("exit-at-3", func(a *App) {
		if a.Ticks() == 2 {
			a.Exit(nil)
		}
	})

	if err := app.Run(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if app.Ticks() != 3 {
		t.Fatalf("Ticks() = %d, want 3", app.Ticks())
	}
}

func TestRunReturnsExitError(t *testing.T) {
	boom := errors.New("boom")
	app := NewApp()
	app.AddSystem("fail", func(a *App) {
		a.Exit(boom)
		a.Exit(nil) // first call wins
	})

	if err := app.Run(context.Background(), time.Millisecond); !errors.Is(err, boom) {
		t.Fatalf("Run() = %v, want %v", err, boom)
	}
}

func TestRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := NewApp().Run(ctx, time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() = %v, want deadline exceeded", err)
	}
}

func TestRunRejectsBadInterval(t *testing.T) {
	if err := NewApp().Run(context.Background(), 0); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestResources(t *testing.T) {
	type counter struct{ n int }

	app := NewApp()
	if _, ok := Resource[*counter](app); ok {
		t.Fatalf("unexpected resource before insert")
	}
	InsertResource(app, &counter{n: 3})
	c, ok := Resource[*counter](app)
	if !ok || c.n != 3 {
		t.Fatalf("Resource() = (%v, %v)", c, ok)
	}
}

func TestCloseRunsInReverseAndJoinsErrors(t *testing.T) {
	app := NewApp()
	var order []int
	errA := errors.New("a")
	app.OnClose(func() error { order = append(order, 1); return errA })
	app.OnClose(func() error { order = append(order, 2); return nil })

	err := app.Close()
	if !errors.Is(err, errA) {
		t.Fatalf("Close() = %v, want %v", err, errA)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("close order = %v", order)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}
}
