// Package sweeper implements the expiration sweeper: a periodic, best-effort
// routine that deletes uploads whose retention window has passed.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/relaypost/tusgo/pkg/filestore"
)

// DefaultGracePeriod bounds how recently a payload file may have been
// written to before the sweeper will consider it eligible for deletion,
// even if its sidecar claims it has expired. It guards against deleting an
// upload a live PATCH is still appending to.
const DefaultGracePeriod = 1 * time.Minute

// Config configures a Sweeper.
type Config struct {
	// Store is the file store to sweep. Required.
	Store *filestore.Store

	// GracePeriod is the minimum time since a payload's last write before it
	// is eligible for deletion, regardless of its recorded expiry. Defaults
	// to DefaultGracePeriod.
	GracePeriod time.Duration

	// Logger receives a summary event per sweep, one event per deleted
	// upload, and one warning per record that could not be inspected or
	// deleted. Defaults to slog.Default().
	Logger *slog.Logger

	// Clock returns the current time. Defaults to time.Now; tests override
	// it to make expiry deterministic.
	Clock func() time.Time

	// OnExpired, if set, is called once per successfully deleted id, so a
	// host can fold the deletion into its own metrics or audit log.
	OnExpired func(id string)
}

// Sweeper periodically deletes uploads past their expiry.
type Sweeper struct {
	config Config
}

// New validates config and returns a ready Sweeper.
func New(config Config) (*Sweeper, error) {
	if config.Store == nil {
		return nil, errMissingStore
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultGracePeriod
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Sweeper{config: config}, nil
}

var errMissingStore = sweeperError("sweeper: Config.Store must be set")

type sweeperError string

func (e sweeperError) Error() string { return string(e) }

// Run invokes Sweep once per interval until ctx is done. It is meant to be
// launched in its own goroutine by the host.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass: it enumerates every id the store knows about,
// loads its sidecar, and deletes it if its retention window has passed and
// it hasn't been written to within the grace period. A record whose
// sidecar can't be loaded is logged and skipped, not treated as a fatal
// error — the sweep as a whole is best-effort and safe to retry on the
// next tick.
func (s *Sweeper) Sweep(ctx context.Context) (deleted int, err error) {
	now := s.config.Clock()
	log := s.config.Logger.With("component", "sweeper")

	ids, err := s.config.Store.Enumerate()
	if err != nil {
		log.Error("SweepEnumerateFailed", "error", err.Error())
		return 0, err
	}

	for _, id := range ids {
		select {
		case <-ctx.Done():
			return deleted, ctx.Err()
		default:
		}

		rec, loadErr := s.config.Store.Load(id)
		if loadErr != nil {
			log.Warn("SweepLoadFailed", "id", id, "error", loadErr.Error())
			continue
		}

		if !rec.Expired(now) {
			continue
		}

		info, statErr := s.config.Store.Stat(id)
		if statErr != nil {
			log.Warn("SweepStatFailed", "id", id, "error", statErr.Error())
			continue
		}
		if now.Sub(info.ModTime()) < s.config.GracePeriod {
			log.Debug("SweepSkippedRecentlyWritten", "id", id)
			continue
		}

		if delErr := s.config.Store.Delete(id); delErr != nil {
			log.Warn("SweepDeleteFailed", "id", id, "error", delErr.Error())
			continue
		}

		log.Info("UploadExpired", "id", id)
		deleted++
		if s.config.OnExpired != nil {
			s.config.OnExpired(id)
		}
	}

	log.Info("SweepComplete", "deleted", deleted, "scanned", len(ids))
	return deleted, nil
}
