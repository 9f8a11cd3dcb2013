// Package shutdown stops the agent in order.
//
// Components register hooks as they start; on SIGINT, SIGTERM or context
// cancellation the hooks run newest first under a shared deadline:
//
//	h := shutdown.NewHandler(10*time.Second, logger)
//	h.OnShutdown("http", srv.Shutdown)
//	h.OnShutdown("store", func(context.Context) error { return store.Close() })
//	err := h.Wait(ctx)
package shutdown
