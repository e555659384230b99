package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 10 * time.Second

// Dispatcher выполняет побочные действия отдельно от основного пути публикации.
// Ошибки и паники только логируются и никогда не возвращаются вызывающему.
type Dispatcher struct {
	log     zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// New создаёт диспетчер.
func New(logger zerolog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{log: logger, timeout: timeout}
}

// Go запускает fn в отдельной горутине с контекстом, не зависящим от отмены родителя.
func (d *Dispatcher) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if ctx == nil {
		ctx = context.Background()
	}
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		runCtx, cancel := context.WithTimeout(detached, d.timeout)
		defer cancel()
		if err := d.safeRun(runCtx, fn); err != nil {
			d.log.Warn().Err(err).Str("task", name).Msg("dispatch: фоновая задача завершилась с ошибкой")
		}
	}()
}

// Wait дожидается завершения уже запущенных задач.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) safeRun(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
