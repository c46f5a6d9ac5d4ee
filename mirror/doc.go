// Package mirror wires one local copy of every entity collection to a
// backend.
//
// New builds, from a config.Config, one cache and one store per entity
// type. Lecturers and theses also get a toggle coordinator and a
// background reconciler, since they are the collections with flags. All of
// them share one API client (circuit breaker, retries for reads, request
// middleware), one notifier and, when persistence is on, one kv store.
//
//	m, err := mirror.New(ctx, cfg, mirror.WithObserver(obs))
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	if err := m.FetchAll(ctx, false); err != nil {
//	    log.Printf("some collections failed to load: %v", err)
//	}
//	m.Lecturers.Toggle(ctx, "l1", domain.FieldIsActive, false)
package mirror
