package service

import (
	"context"

	"strava-effort/internal/store"
)

// Export serialises the whole cache
func (s *SyncService) Export(ctx context.Context) ([]byte, error) {
	return s.store.ExportJSON(ctx)
}

// Import replaces the whole cache with an exported document. The session
// reloads credentials from the imported data on next use.
func (s *SyncService) Import(ctx context.Context, data []byte) error {
	if err := s.store.ImportJSON(ctx, data); err != nil {
		return err
	}
	s.session.Forget()
	s.log.Info().Msg("cache imported")
	return nil
}

// Stats reports row counts and approximate cache size
func (s *SyncService) Stats(ctx context.Context) (store.Stats, error) {
	return s.store.Stats(ctx)
}

// Reset destroys and recreates the cache, credentials included
func (s *SyncService) Reset(ctx context.Context) error {
	if err := s.store.ResetAll(ctx); err != nil {
		return err
	}
	s.session.Forget()
	s.log.Info().Msg("cache reset")
	return nil
}

// Logout clears the stored credentials
func (s *SyncService) Logout(ctx context.Context) error {
	return s.session.Logout(ctx)
}
